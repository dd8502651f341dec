package milvus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() CollectionSpec {
	return CollectionSpec{
		Name: "TenantAcmeOffice",
		Dim:  3,
		Fields: []ScalarField{
			{Name: "name"},
			{Name: "services", Array: true},
		},
	}
}

func TestBuildSchema(t *testing.T) {
	schema := BuildSchema(testSpec())

	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{FieldID, FieldSearchText, FieldSparse, FieldDense, "name", "services"}, names)
	assert.True(t, schema.Fields[0].PrimaryKey)
	require.Len(t, schema.Functions, 1)
	assert.Equal(t, []string{FieldSearchText}, schema.Functions[0].InputFieldNames)
	assert.Equal(t, []string{FieldSparse}, schema.Functions[0].OutputFieldNames)
}

func TestBuildColumns(t *testing.T) {
	schema := BuildSchema(testSpec())
	rows := []Row{
		{FieldID: "a", FieldSearchText: "Amt", FieldDense: []float32{1, 0, 0}, "name": "Amt", "services": []string{"Pass"}},
		{FieldID: "b", FieldDense: []float32{0, 1, 0}},
	}

	cols, err := BuildColumns(schema, rows)
	require.NoError(t, err)
	// sparse 字段由 BM25 函数生成，不写入
	assert.Len(t, cols, 5)
	for _, c := range cols {
		assert.Equal(t, 2, c.Len(), c.Name())
	}

	v, err := cols[0].Get(1)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestBuildColumns_Errors(t *testing.T) {
	schema := BuildSchema(testSpec())

	_, err := BuildColumns(schema, nil)
	assert.Error(t, err)

	_, err = BuildColumns(schema, []Row{{FieldID: "a"}})
	assert.ErrorContains(t, err, "missing vector")

	_, err = BuildColumns(schema, []Row{
		{FieldDense: []float32{1, 0, 0}},
		{FieldDense: []float32{1, 0}},
	})
	assert.ErrorContains(t, err, "dim")
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsAlreadyExists(errors.New("collection already exists[collection=X]")))
	assert.True(t, IsCollectionNotFound(errors.New("can't find collection[database=default][collection=X]")))
	assert.True(t, IsNodeResolution(errors.New("fail to search: no available shard delegator found")))
	assert.False(t, IsNodeResolution(nil))
	assert.False(t, IsAlreadyExists(errors.New("timeout")))

}
