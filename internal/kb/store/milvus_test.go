package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(errors.New("collection already exists: TenantXDocument")), ErrCollectionExists)
	assert.ErrorIs(t, classify(errors.New("can't find collection TenantX")), ErrCollectionNotFound)
	assert.ErrorIs(t, classify(errors.New("no available shard leader")), ErrNodeResolution)

	other := errors.New("connection refused")
	assert.Equal(t, other, classify(other))
}

func TestEqExpr(t *testing.T) {
	assert.Equal(t, `doc_id == "abc"`, eqExpr("doc_id", "abc"))
	assert.Equal(t, `doc_id == "a\"b"`, eqExpr("doc_id", `a"b`))
}

func TestScalarValue(t *testing.T) {
	assert.Equal(t, "x", scalarValue("x"))
	assert.Equal(t, []string{"a", "b"}, scalarValue([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "1"}, scalarValue([]any{"a", 1}))
	assert.Equal(t, `{"k":"v"}`, scalarValue(map[string]any{"k": "v"}))
	assert.Nil(t, scalarValue(nil))
}

func TestFromRow(t *testing.T) {
	obj := fromRow(map[string]any{
		"id":          "o1",
		"embedding":   []float32{1, 2},
		"search_text": "ignored",
		"title":       "T",
	})
	assert.Equal(t, "o1", obj.ID)
	assert.Equal(t, []float32{1, 2}, obj.Vector)
	assert.Equal(t, map[string]any{"title": "T"}, obj.Properties)
}
