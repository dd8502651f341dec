package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/pkg/component/milvus"
	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/id"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

var _ VectorStore = (*MilvusStore)(nil)

// MilvusStore 实现基于 Milvus 的向量存储。
// 嵌入向量在客户端计算，BM25 稀疏向量由服务端从 search_text 生成。
type MilvusStore struct {
	client   *milvus.Client
	embedder llm.EmbeddingProvider

	connectTimeout time.Duration
	queryTimeout   time.Duration
	insertTimeout  time.Duration
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, embedder llm.EmbeddingProvider) *MilvusStore {
	opts := client.Options()
	return &MilvusStore{
		client:         client,
		embedder:       embedder,
		connectTimeout: opts.ConnectTimeout,
		queryTimeout:   opts.QueryTimeout,
		insertTimeout:  opts.InsertTimeout,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// CreateCollection 创建 Milvus 集合。
func (s *MilvusStore) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	ctx, cancel := withTimeout(ctx, s.insertTimeout)
	defer cancel()

	fields := make([]milvus.ScalarField, 0, len(spec.Properties))
	for _, p := range spec.Properties {
		fields = append(fields, milvus.ScalarField{Name: p.Name, Array: p.Array})
	}
	err := s.client.CreateCollection(ctx, milvus.CollectionSpec{
		Name:        spec.Name,
		Description: spec.Description,
		Fields:      fields,
	})
	return classify(err)
}

// CollectionExists 检查集合是否存在。
func (s *MilvusStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.connectTimeout)
	defer cancel()

	ok, err := s.client.HasCollection(ctx, name)
	if err != nil {
		if milvus.IsCollectionNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe collection %s: %w", name, classify(err))
	}
	return ok, nil
}

// ListCollections 列出全部集合。
func (s *MilvusStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx, s.connectTimeout)
	defer cancel()

	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", classify(err))
	}
	return names, nil
}

// DeleteCollection 删除集合。
func (s *MilvusStore) DeleteCollection(ctx context.Context, name string) error {
	ctx, cancel := withTimeout(ctx, s.connectTimeout)
	defer cancel()

	ok, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return ErrCollectionNotFound
	}
	return classify(s.client.DropCollection(ctx, name))
}

// Insert 计算嵌入向量后插入对象。
func (s *MilvusStore) Insert(ctx context.Context, collection string, obj Object) (string, error) {
	if obj.ID == "" {
		obj.ID = id.NewUUID()
	}
	ctx, cancel := withTimeout(ctx, s.insertTimeout)
	defer cancel()

	row, err := s.toRow(ctx, obj)
	if err != nil {
		return "", err
	}
	if err := s.client.Insert(ctx, collection, row); err != nil {
		return "", classify(err)
	}
	return obj.ID, nil
}

// UpdateByID 以 upsert 整体替换对象。
func (s *MilvusStore) UpdateByID(ctx context.Context, collection string, obj Object) error {
	if _, err := s.FetchByID(ctx, collection, obj.ID, false); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.insertTimeout)
	defer cancel()

	row, err := s.toRow(ctx, obj)
	if err != nil {
		return err
	}
	return classify(s.client.Upsert(ctx, collection, row))
}

// DeleteByID 按主键删除。
func (s *MilvusStore) DeleteByID(ctx context.Context, collection, id string) error {
	n, err := s.DeleteWhere(ctx, collection, milvus.FieldID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrObjectNotFound
	}
	return nil
}

// DeleteWhere 按等值条件删除。
func (s *MilvusStore) DeleteWhere(ctx context.Context, collection, field, value string) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.insertTimeout)
	defer cancel()

	n, err := s.client.Delete(ctx, collection, eqExpr(field, value))
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// FetchByID 按主键读取对象。
func (s *MilvusStore) FetchByID(ctx context.Context, collection, id string, includeVector bool) (*Object, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	fields, err := s.client.PayloadFields(ctx, collection)
	if err != nil {
		return nil, classify(err)
	}
	if includeVector {
		fields = append(fields, milvus.FieldDense)
	}

	rows, err := s.client.Query(ctx, collection, eqExpr(milvus.FieldID, id), fields, 1)
	if err != nil {
		return nil, classify(err)
	}
	if len(rows) == 0 {
		return nil, ErrObjectNotFound
	}

	obj := fromRow(rows[0])
	return &obj, nil
}

// HybridQuery 执行稠密向量 + BM25 混合检索。
// 查询向量计算失败时退化为仅 BM25 检索。
func (s *MilvusStore) HybridQuery(ctx context.Context, collection, query string, alpha float64, limit int) ([]Hit, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	fields, err := s.client.PayloadFields(ctx, collection)
	if err != nil {
		return nil, classify(err)
	}

	var dense []float32
	if s.embedder != nil && alpha > 0 {
		dense, err = s.embedder.EmbedSingle(ctx, query)
		if err != nil {
			logger.Warnw("query embedding failed, falling back to keyword search",
				"collection", collection, "error", err.Error())
			dense = nil
		}
	}

	raw, err := s.client.HybridSearch(ctx, collection, dense, query, alpha, limit, fields)
	if err != nil {
		return nil, classify(err)
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		obj := fromRow(h.Fields)
		if obj.ID == "" {
			obj.ID = h.ID
		}
		score := float64(h.Score)
		hits = append(hits, Hit{ID: obj.ID, Properties: obj.Properties, Score: &score})
	}
	return hits, nil
}

func (s *MilvusStore) toRow(ctx context.Context, obj Object) (milvus.Row, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	vec, err := s.embedder.EmbedSingle(ctx, obj.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed object %s: %w", obj.ID, err)
	}

	row := milvus.Row{
		milvus.FieldID:         obj.ID,
		milvus.FieldSearchText: obj.Text,
		milvus.FieldDense:      vec,
	}
	for k, v := range obj.Properties {
		if v = scalarValue(v); v != nil {
			row[k] = v
		}
	}
	return row, nil
}

// scalarValue 将属性值转换为 VarChar 或 VarChar 数组。
func scalarValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(e))
			}
		}
		return out
	case fmt.Stringer:
		return t.String()
	default:
		s, err := json.MarshalString(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return s
	}
}

func fromRow(row milvus.Row) Object {
	obj := Object{Properties: make(map[string]any, len(row))}
	for k, v := range row {
		switch k {
		case milvus.FieldID:
			obj.ID, _ = v.(string)
		case milvus.FieldDense:
			obj.Vector, _ = v.([]float32)
		case milvus.FieldSearchText, milvus.FieldSparse:
		default:
			obj.Properties[k] = v
		}
	}
	return obj
}

func eqExpr(field, value string) string {
	return field + " == " + strconv.Quote(value)
}

// classify 将 Milvus 错误归类为存储层哨兵错误。
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, milvus.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case milvus.IsAlreadyExists(err):
		return fmt.Errorf("%w: %v", ErrCollectionExists, err)
	case milvus.IsCollectionNotFound(err):
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	case milvus.IsNodeResolution(err):
		return fmt.Errorf("%w: %v", ErrNodeResolution, err)
	}
	return err
}
