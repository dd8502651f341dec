package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/id"
)

var _ VectorStore = (*MemoryStore)(nil)

const textField = "text"

// MemoryStore 实现基于内存的向量存储。
// 每个集合一个内存 bleve 索引负责关键词打分，向量部分为余弦相似度，
// 两路分数各自 min-max 归一化后按 alpha 加权。
type MemoryStore struct {
	mu          sync.RWMutex
	embedder    llm.EmbeddingProvider
	collections map[string]*memCollection
}

type memCollection struct {
	spec    CollectionSpec
	index   bleve.Index
	objects map[string]*Object
}

// NewMemoryStore 创建内存存储。embedder 为 nil 时对象不带向量。
func NewMemoryStore(embedder llm.EmbeddingProvider) *MemoryStore {
	return &MemoryStore{
		embedder:    embedder,
		collections: make(map[string]*memCollection),
	}
}

// CreateCollection 创建集合。
func (s *MemoryStore) CreateCollection(_ context.Context, spec CollectionSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[spec.Name]; ok {
		return ErrCollectionExists
	}

	fm := bleve.NewTextFieldMapping()
	dm := bleve.NewDocumentMapping()
	dm.AddFieldMappingsAt(textField, fm)
	im := bleve.NewIndexMapping()
	im.DefaultMapping = dm

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return fmt.Errorf("failed to create index for %s: %w", spec.Name, err)
	}
	s.collections[spec.Name] = &memCollection{
		spec:    spec,
		index:   idx,
		objects: make(map[string]*Object),
	}
	return nil
}

// CollectionExists 检查集合是否存在。
func (s *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// ListCollections 列出全部集合，按名称排序。
func (s *MemoryStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteCollection 删除集合。
func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return ErrCollectionNotFound
	}
	delete(s.collections, name)
	return c.index.Close()
}

// Insert 插入对象。
func (s *MemoryStore) Insert(ctx context.Context, collection string, obj Object) (string, error) {
	if obj.ID == "" {
		obj.ID = id.NewUUID()
	}
	stored, err := s.prepare(ctx, obj)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return "", ErrCollectionNotFound
	}
	if err := c.put(stored); err != nil {
		return "", err
	}
	return obj.ID, nil
}

// UpdateByID 整体替换对象。
func (s *MemoryStore) UpdateByID(ctx context.Context, collection string, obj Object) error {
	stored, err := s.prepare(ctx, obj)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	if _, ok := c.objects[obj.ID]; !ok {
		return ErrObjectNotFound
	}
	return c.put(stored)
}

// DeleteByID 按主键删除。
func (s *MemoryStore) DeleteByID(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	if _, ok := c.objects[id]; !ok {
		return ErrObjectNotFound
	}
	return c.remove(id)
}

// DeleteWhere 删除 field == value 的对象。
func (s *MemoryStore) DeleteWhere(_ context.Context, collection, field, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, ErrCollectionNotFound
	}

	var n int64
	for oid, obj := range c.objects {
		if v, _ := obj.Properties[field].(string); v == value || (field == "id" && oid == value) {
			if err := c.remove(oid); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// FetchByID 按主键读取对象。
func (s *MemoryStore) FetchByID(_ context.Context, collection, id string, includeVector bool) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	obj, ok := c.objects[id]
	if !ok {
		return nil, ErrObjectNotFound
	}

	out := Object{ID: obj.ID, Text: obj.Text, Properties: copyProps(obj.Properties)}
	if includeVector {
		out.Vector = append([]float32(nil), obj.Vector...)
	}
	return &out, nil
}

// HybridQuery 混合检索。
func (s *MemoryStore) HybridQuery(ctx context.Context, collection, query string, alpha float64, limit int) ([]Hit, error) {
	var qvec []float32
	if s.embedder != nil && alpha > 0 {
		v, err := s.embedder.EmbedSingle(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		qvec = v
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if len(c.objects) == 0 {
		return []Hit{}, nil
	}

	keyword, err := c.keywordScores(query)
	if err != nil {
		return nil, err
	}
	vector := map[string]float64{}
	if len(qvec) > 0 {
		for oid, obj := range c.objects {
			if HasEmbedding(obj.Vector) {
				vector[oid] = cosine(qvec, obj.Vector)
			}
		}
	}
	if len(vector) == 0 {
		alpha = 0
	}
	if len(keyword) == 0 && len(vector) > 0 {
		alpha = 1
	}
	// 归一化前记录命中集合：最低分命中归一化后为 0，仍需保留。
	matched := make(map[string]struct{}, len(keyword)+len(vector))
	for oid := range keyword {
		matched[oid] = struct{}{}
	}
	for oid, v := range vector {
		if v > 0 {
			matched[oid] = struct{}{}
		}
	}
	minMax(keyword)
	minMax(vector)

	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(matched))
	for oid := range matched {
		ranked = append(ranked, scored{oid, alpha*vector[oid] + (1-alpha)*keyword[oid]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		score := r.score
		hits = append(hits, Hit{
			ID:         r.id,
			Properties: copyProps(c.objects[r.id].Properties),
			Score:      &score,
		})
	}
	return hits, nil
}

func (s *MemoryStore) prepare(ctx context.Context, obj Object) (*Object, error) {
	stored := &Object{ID: obj.ID, Text: obj.Text, Properties: copyProps(obj.Properties)}
	if s.embedder != nil {
		v, err := s.embedder.EmbedSingle(ctx, obj.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed object %s: %w", obj.ID, err)
		}
		stored.Vector = v
	}
	return stored, nil
}

func (c *memCollection) put(obj *Object) error {
	if err := c.index.Index(obj.ID, map[string]any{textField: obj.Text}); err != nil {
		return fmt.Errorf("failed to index object %s: %w", obj.ID, err)
	}
	c.objects[obj.ID] = obj
	return nil
}

func (c *memCollection) remove(oid string) error {
	if err := c.index.Delete(oid); err != nil {
		return fmt.Errorf("failed to unindex object %s: %w", oid, err)
	}
	delete(c.objects, oid)
	return nil
}

func (c *memCollection) keywordScores(query string) (map[string]float64, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField(textField)

	req := bleve.NewSearchRequestOptions(q, len(c.objects), 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	scores := make(map[string]float64, len(res.Hits))
	for _, h := range res.Hits {
		scores[h.ID] = h.Score
	}
	return scores, nil
}

// minMax 原地归一化到 [0,1]，只有一个值时取 1。
func minMax(scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range scores {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for k, v := range scores {
		if hi == lo {
			scores[k] = 1
		} else {
			scores[k] = (v - lo) / (hi - lo)
		}
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
