package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// Row is one entity keyed by field name. Values are string, []string or
// []float32 for the dense vector.
type Row map[string]any

// Hit is a single search result.
type Hit struct {
	ID     string
	Score  float32
	Fields Row
}

// BuildColumns converts rows into insert columns following the schema.
// Missing scalar values become empty strings; the BM25 output field is skipped.
func BuildColumns(schema *entity.Schema, rows []Row) ([]column.Column, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to write")
	}

	cols := make([]column.Column, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		switch f.DataType {
		case entity.FieldTypeSparseVector:
			continue
		case entity.FieldTypeVarChar:
			vals := make([]string, len(rows))
			for i, r := range rows {
				vals[i], _ = r[f.Name].(string)
			}
			cols = append(cols, column.NewColumnVarChar(f.Name, vals))
		case entity.FieldTypeArray:
			vals := make([][]string, len(rows))
			for i, r := range rows {
				v, _ := r[f.Name].([]string)
				if v == nil {
					v = []string{}
				}
				vals[i] = v
			}
			cols = append(cols, column.NewColumnVarCharArray(f.Name, vals))
		case entity.FieldTypeFloatVector:
			vals := make([][]float32, len(rows))
			dim := 0
			for i, r := range rows {
				v, ok := r[f.Name].([]float32)
				if !ok {
					return nil, fmt.Errorf("row %d: missing vector field %s", i, f.Name)
				}
				if dim == 0 {
					dim = len(v)
				} else if len(v) != dim {
					return nil, fmt.Errorf("row %d: vector dim %d, want %d", i, len(v), dim)
				}
				vals[i] = v
			}
			cols = append(cols, column.NewColumnFloatVector(f.Name, dim, vals))
		default:
			return nil, fmt.Errorf("unsupported field type %v for %s", f.DataType, f.Name)
		}
	}
	return cols, nil
}

// Insert writes rows into the collection.
func (c *Client) Insert(ctx context.Context, collection string, rows ...Row) error {
	conn, cols, err := c.columns(ctx, collection, rows)
	if err != nil {
		return err
	}
	if err := conn.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...)); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

// Upsert replaces rows by primary key.
func (c *Client) Upsert(ctx context.Context, collection string, rows ...Row) error {
	conn, cols, err := c.columns(ctx, collection, rows)
	if err != nil {
		return err
	}
	if err := conn.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...)); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", collection, err)
	}
	return nil
}

func (c *Client) columns(ctx context.Context, collection string, rows []Row) (api, []column.Column, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return nil, nil, err
	}
	schema, err := c.schemaOf(ctx, conn, collection)
	if err != nil {
		return nil, nil, err
	}
	cols, err := BuildColumns(schema, rows)
	return conn, cols, err
}

// Delete removes every entity matching expr and returns the count.
func (c *Client) Delete(ctx context.Context, collection, expr string) (int64, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return 0, err
	}
	n, err := conn.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return n, nil
}

// Query returns rows matching the filter with strong consistency.
func (c *Client) Query(ctx context.Context, collection, filter string, outputFields []string, limit int) ([]Row, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	opt := milvusclient.NewQueryOption(collection).
		WithFilter(filter).
		WithOutputFields(outputFields...).
		WithConsistencyLevel(entity.ClStrong)
	if limit > 0 {
		opt = opt.WithLimit(limit)
	}

	rs, err := conn.Query(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	rows := make([]Row, rs.ResultCount)
	for i := range rows {
		rows[i] = Row{}
	}
	for _, col := range rs.Fields {
		for i := 0; i < rs.ResultCount && i < col.Len(); i++ {
			v, err := col.Get(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s[%d]: %w", col.Name(), i, err)
			}
			rows[i][col.Name()] = normalizeValue(v)
		}
	}
	return rows, nil
}

// HybridSearch blends a dense ANN request with a BM25 full-text request using
// weights [alpha, 1-alpha]. Without a dense vector it falls back to BM25 only.
func (c *Client) HybridSearch(ctx context.Context, collection string, dense []float32, text string, alpha float64, limit int, outputFields []string) ([]Hit, error) {
	conn, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	var results []milvusclient.ResultSet
	if len(dense) == 0 {
		results, err = conn.Search(ctx, milvusclient.NewSearchOption(collection, limit, []entity.Vector{entity.Text(text)}).
			WithANNSField(FieldSparse).
			WithOutputFields(outputFields...))
	} else {
		denseReq := milvusclient.NewAnnRequest(FieldDense, limit, entity.FloatVector(dense))
		sparseReq := milvusclient.NewAnnRequest(FieldSparse, limit, entity.Text(text))
		results, err = conn.HybridSearch(ctx, milvusclient.NewHybridSearchOption(collection, limit, denseReq, sparseReq).
			WithReranker(milvusclient.NewWeightedReranker([]float64{alpha, 1 - alpha})).
			WithOutputFields(outputFields...))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{Fields: Row{}}
		if i < len(rs.Scores) {
			hit.Score = rs.Scores[i]
		}
		if rs.IDs != nil {
			if id, err := rs.IDs.Get(i); err == nil {
				hit.ID, _ = id.(string)
			}
		}
		for _, col := range rs.Fields {
			if v, err := col.Get(i); err == nil {
				hit.Fields[col.Name()] = normalizeValue(v)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case entity.FloatVector:
		return []float32(t)
	default:
		return v
	}
}
