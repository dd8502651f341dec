package response

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(RequestIDKey, "req-1")
	return c, w
}

func TestOK(t *testing.T) {
	c, w := newContext()
	OK(c, map[string]int{"checked": 2})

	assert.Equal(t, http.StatusOK, w.Code)
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, 0, r.Code)
	assert.Equal(t, "req-1", r.RequestID)
	assert.NotZero(t, r.Timestamp)
}

func TestFail(t *testing.T) {
	c, w := newContext()
	Fail(c, fmt.Errorf("lookup: %w", errors.ErrTenantNotFound))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, errors.ErrTenantNotFound.Code, r.Code)
	assert.Equal(t, "Tenant not found", r.Message)
}

func TestFail_PlainErrorIsInternal(t *testing.T) {
	c, w := newContext()
	c.Request.Header.Set("Accept-Language", "zh")
	Fail(c, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "服务器内部错误", r.Message)
}
