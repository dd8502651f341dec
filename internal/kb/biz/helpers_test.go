package biz

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/llm"
)

// bagEmbedder 把单词哈希到固定维度，用于确定性测试。
type bagEmbedder struct{}

func (bagEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = bagEmbedder{}.EmbedSingle(ctx, t)
	}
	return out, nil
}

func (bagEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%64]++
	}
	return v, nil
}

func (bagEmbedder) Name() string { return "bag" }

// faultyStore 在内存存储之上注入故障和固定检索结果。
type faultyStore struct {
	*store.MemoryStore

	mu         sync.Mutex
	existsErrs int
	listErr    error
	createErr  error
	insertErr  func(obj store.Object) error
	fetchErr   error
	deleteErr  error
	hits       map[string][]store.Hit
	queryErrs  map[string]error
	creates    int
}

func newFaultyStore(embedder llm.EmbeddingProvider) *faultyStore {
	return &faultyStore{
		MemoryStore: store.NewMemoryStore(embedder),
		hits:        map[string][]store.Hit{},
		queryErrs:   map[string]error{},
	}
}

var errTransport = errors.New("rpc error: connection reset")

func (s *faultyStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	if s.existsErrs > 0 {
		s.existsErrs--
		s.mu.Unlock()
		return false, errTransport
	}
	s.mu.Unlock()
	return s.MemoryStore.CollectionExists(ctx, name)
}

func (s *faultyStore) CreateCollection(ctx context.Context, spec store.CollectionSpec) error {
	if s.createErr != nil {
		return s.createErr
	}
	err := s.MemoryStore.CreateCollection(ctx, spec)
	if err == nil {
		s.mu.Lock()
		s.creates++
		s.mu.Unlock()
	}
	return err
}

func (s *faultyStore) ListCollections(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListCollections(ctx)
}

func (s *faultyStore) Insert(ctx context.Context, collection string, obj store.Object) (string, error) {
	if s.insertErr != nil {
		if err := s.insertErr(obj); err != nil {
			return "", err
		}
	}
	return s.MemoryStore.Insert(ctx, collection, obj)
}

func (s *faultyStore) FetchByID(ctx context.Context, collection, id string, includeVector bool) (*store.Object, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.MemoryStore.FetchByID(ctx, collection, id, includeVector)
}

func (s *faultyStore) DeleteWhere(ctx context.Context, collection, field, value string) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return s.MemoryStore.DeleteWhere(ctx, collection, field, value)
}

func (s *faultyStore) HybridQuery(ctx context.Context, collection, query string, alpha float64, limit int) ([]store.Hit, error) {
	if err, ok := s.queryErrs[collection]; ok {
		return nil, err
	}
	if hits, ok := s.hits[collection]; ok {
		return hits, nil
	}
	return s.MemoryStore.HybridQuery(ctx, collection, query, alpha, limit)
}

// memTenants 内存租户仓库。
type memTenants struct {
	tenants map[string]*model.Tenant
	listErr error
}

func (r *memTenants) GetTenantConfig(_ context.Context, tenantID string) (*model.Tenant, error) {
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return t, nil
}

func (r *memTenants) ListTenantIDs(_ context.Context) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids, nil
}

// scriptedChat 按预设片段输出的对话供应商。
type scriptedChat struct {
	mu        sync.Mutex
	chunks    []string
	streamErr error
	startErr  error
	text      string
	prompts   []string
	messages  [][]llm.Message
	opts      []llm.GenerateOptions
}

func (c *scriptedChat) Chat(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	ch, err := c.StreamChat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return llm.Collect(ch)
}

func (c *scriptedChat) StreamChat(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	c.mu.Lock()
	c.messages = append(c.messages, messages)
	c.opts = append(c.opts, opts)
	c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, s := range c.chunks {
			if !llm.SendChunk(ctx, ch, llm.StreamChunk{Content: s}) {
				return
			}
		}
		if c.streamErr != nil {
			llm.SendChunk(ctx, ch, llm.StreamChunk{Err: c.streamErr})
		}
	}()
	return ch, nil
}

func (c *scriptedChat) GenerateText(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.opts = append(c.opts, opts)
	if c.startErr != nil {
		return "", c.startErr
	}
	return c.text, nil
}

func (c *scriptedChat) Name() string { return "scripted" }

type fixture struct {
	store       *faultyStore
	tenants     *memTenants
	collections *CollectionManager
	documents   *DocumentIndex
	entities    *EntityStore
	router      *SearchRouter
	metrics     *metrics.KBMetrics
}

func newFixture(t *testing.T, embedder llm.EmbeddingProvider) *fixture {
	t.Helper()
	vs := newFaultyStore(embedder)
	tenants := &memTenants{tenants: map[string]*model.Tenant{}}
	m := metrics.New()
	cm := NewCollectionManager(vs, tenants, m)
	return &fixture{
		store:       vs,
		tenants:     tenants,
		collections: cm,
		documents:   NewDocumentIndex(cm, vs, m),
		entities:    NewEntityStore(cm, vs, 0.5, m),
		router:      NewSearchRouter(cm, vs, 0.75, m),
		metrics:     m,
	}
}

func storeObject(id string) store.Object {
	return store.Object{ID: id, Properties: map[string]any{propDocID: id}, Text: id}
}

func ptr[T any](v T) *T { return &v }
