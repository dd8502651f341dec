package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	code := MakeCode(ServiceKB, CategoryResource, 2)
	assert.Equal(t, 2004002, code)

	svc, cat, seq := ParseCode(code)
	assert.Equal(t, ServiceKB, svc)
	assert.Equal(t, CategoryResource, cat)
	assert.Equal(t, 2, seq)
}

func TestErrno_WithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrStoreUnavailable.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrStoreUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.Equal(t, codes.Unavailable, err.GRPCStatus())
	assert.Contains(t, err.Error(), "connection refused")
	// 原始值保持不变
	assert.Nil(t, ErrStoreUnavailable.Unwrap())
}

func TestErrno_Message(t *testing.T) {
	assert.Equal(t, "租户不存在", ErrTenantNotFound.Message("zh"))
	assert.Equal(t, "Tenant not found", ErrTenantNotFound.Message("de"))
	assert.Equal(t, "custom", ErrTenantNotFound.WithMessage("custom").Message("en"))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("handler: %w", ErrDocumentNotFound)
	assert.Equal(t, ErrDocumentNotFound.Code, FromError(wrapped).Code)
	assert.True(t, IsCode(wrapped, ErrDocumentNotFound.Code))

	plain := stderrors.New("boom")
	assert.Equal(t, ErrInternal.Code, FromError(plain).Code)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrInternal.Code, 500, codes.Internal, "dup", "dup"))
	})
	e, ok := Lookup(ErrEmptyQuery.Code)
	assert.True(t, ok)
	assert.Equal(t, ErrEmptyQuery, e)
}
