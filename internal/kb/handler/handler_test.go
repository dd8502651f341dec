package handler_test

import (
	"bytes"
	"context"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/tenant-kb/internal/kb/biz"
	"github.com/kart-io/tenant-kb/internal/kb/handler"
	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/router"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/infra/pool"
	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// bagEmbedder 把单词哈希到固定维度。
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

// scriptedChat 按预设片段输出。
type scriptedChat struct {
	mu       sync.Mutex
	chunks   []string
	text     string
	startErr error
}

func (c *scriptedChat) Chat(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	ch, err := c.StreamChat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return llm.Collect(ch)
}

func (c *scriptedChat) StreamChat(ctx context.Context, _ []llm.Message, _ llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}
	chunks := c.chunks
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, s := range chunks {
			if !llm.SendChunk(ctx, ch, llm.StreamChunk{Content: s}) {
				return
			}
		}
	}()
	return ch, nil
}

func (c *scriptedChat) GenerateText(context.Context, string, llm.GenerateOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return "", c.startErr
	}
	return c.text, nil
}

func (c *scriptedChat) Name() string { return "scripted" }

type testServer struct {
	engine    *gin.Engine
	chat      *scriptedChat
	metrics   *metrics.KBMetrics
	indexPool *pool.Pool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tenants := store.NewTenantStore(db)
	require.NoError(t, tenants.AutoMigrate(context.Background()))
	require.NoError(t, tenants.SaveTenant(context.Background(), &model.Tenant{ID: "t1", Name: "Stadt Musterhausen"}))

	vs := store.NewMemoryStore(bagEmbedder{})
	m := metrics.New()
	chat := &scriptedChat{}

	collections := biz.NewCollectionManager(vs, tenants, m)
	entities := biz.NewEntityStore(collections, vs, 0.5, m)
	searchRouter := biz.NewSearchRouter(collections, vs, 0.75, m)
	composer := biz.NewComposer(tenants, searchRouter, entities, chat, biz.DefaultComposerConfig())

	indexPool, err := pool.NewPool("test-index", pool.IndexPool, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexPool.Release(0) })

	h := handler.New(handler.Deps{
		Collections: collections,
		Documents:   biz.NewDocumentIndex(collections, vs, m),
		Entities:    entities,
		Router:      searchRouter,
		Chat:        biz.NewChatService(composer, chat, nil, m),
		Metrics:     m,
		IndexPool:   indexPool,
	})

	engine := gin.New()
	router.Register(engine, h)
	return &testServer{engine: engine, chat: chat, metrics: m, indexPool: indexPool}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf.Write(raw)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestCollections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/tenants/t1/collections", map[string]string{"type": "office"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		Collection string `json:"collection"`
	}
	decode(t, w, &created)
	assert.Equal(t, biz.NameFor("t1", model.ContentTypeOffice), created.Collection)

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/collections", map[string]string{"type": "museum"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInvalidContentType.Code, decode(t, w, nil).Code)

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/collections", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// document 集合缺失时修复
	w = s.do(t, http.MethodPost, "/v1/tenants/t1/collections/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var validated struct {
		Repaired bool `json:"repaired"`
	}
	decode(t, w, &validated)
	assert.True(t, validated.Repaired)

	w = s.do(t, http.MethodPost, "/v1/collections/validate-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report biz.ValidateReport
	decode(t, w, &report)
	assert.Equal(t, biz.ValidateReport{Checked: 1}, report)

	w = s.do(t, http.MethodDelete, "/v1/tenants/t1/collections", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/tenants/t1/documents", map[string]any{
		"title":   "Rathaus",
		"content": "Das Rathaus ist montags geöffnet.",
		"source":  "web",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var added struct {
		ID string `json:"id"`
	}
	decode(t, w, &added)
	require.NotEmpty(t, added.ID)
	docPath := "/v1/tenants/t1/documents/" + added.ID

	w = s.do(t, http.MethodGet, docPath+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status model.DocumentStatus
	decode(t, w, &status)
	assert.Equal(t, model.IndexStatusIndexed, status.Status)

	w = s.do(t, http.MethodPatch, docPath, map[string]any{"title": "Neues Rathaus"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/tenants/t1/search?q=Rathaus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []model.SearchResult
	decode(t, w, &results)
	require.NotEmpty(t, results)
	assert.Equal(t, "Neues Rathaus", results[0].Title)

	w = s.do(t, http.MethodDelete, docPath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, docPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrDocumentNotFound.Code, decode(t, w, nil).Code)

	w = s.do(t, http.MethodGet, docPath+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &status)
	assert.Equal(t, model.IndexStatusNotIndexed, status.Status)

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/documents", map[string]any{"title": "leer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReindex(t *testing.T) {
	s := newTestServer(t)
	docs := []model.Document{
		{ID: "d1", Title: "Bibliothek", Content: "Die Bibliothek öffnet um 9 Uhr."},
		{ID: "d2", Title: "Schwimmbad", Content: "Das Schwimmbad ist im Winter geschlossen."},
	}

	w := s.do(t, http.MethodPost, "/v1/tenants/t1/documents/reindex", map[string]any{"documents": docs})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report handler.ReindexReport
	decode(t, w, &report)
	assert.Equal(t, handler.ReindexReport{Total: 2, Succeeded: 2}, report)

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/documents/d1/reindex", model.Document{Title: "Stadtbibliothek", Content: "Neue Zeiten."})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/tenants/t2/documents/reindex", map[string]any{"documents": docs, "async": true})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	s.indexPool.Wait()

	w = s.do(t, http.MethodGet, "/v1/tenants/t2/documents/d2/status", nil)
	var status model.DocumentStatus
	decode(t, w, &status)
	assert.Equal(t, model.IndexStatusIndexed, status.Status)
}

func TestEntities(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/tenants/t1/entities/office", map[string]any{
		"id":      "buergeramt",
		"name":    "Bürgeramt",
		"contact": map[string]any{"phone": "0123 456"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/tenants/t1/entities/office/search?limit=3&q="+url.QueryEscape("Bürgeramt"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []model.SearchResult
	decode(t, w, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "buergeramt", results[0].ID)
	assert.Equal(t, map[string]any{"phone": "0123 456"}, results[0].Data["contact"])

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/entities/document", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInvalidContentType.Code, decode(t, w, nil).Code)

	w = s.do(t, http.MethodGet, "/v1/tenants/t9/entities/school/search?q=x", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &results)
	assert.Empty(t, results)
}

func TestAnswerAndChat(t *testing.T) {
	s := newTestServer(t)
	s.chat.text = "  Montags von 8 bis 12 Uhr. "
	s.chat.chunks = []string{"Antwort <structured_data>{\"a\":", "1}</structured_data>"}

	w := s.do(t, http.MethodPost, "/v1/tenants/t1/answer", map[string]any{"query": "Wann?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answer struct {
		Answer string `json:"answer"`
	}
	decode(t, w, &answer)
	assert.Equal(t, "Montags von 8 bis 12 Uhr.", answer.Answer)

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/chat", map[string]any{"query": "Wann?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp model.ChatResponse
	decode(t, w, &resp)
	assert.Equal(t, "Antwort", resp.Text)
	assert.Equal(t, map[string]any{"a": float64(1)}, resp.StructuredData)

	w = s.do(t, http.MethodPost, "/v1/tenants/t1/answer", map[string]any{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrEmptyQuery.Code, decode(t, w, nil).Code)

	w = s.do(t, http.MethodPost, "/v1/tenants/nobody/chat", map[string]any{"query": "Wann?"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrTenantNotFound.Code, decode(t, w, nil).Code)

	s.chat.startErr = assert.AnError
	w = s.do(t, http.MethodPost, "/v1/tenants/t1/answer", map[string]any{"query": "Wann?"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.ErrLLMUnavailable.Code, decode(t, w, nil).Code)
}

func TestChatStream(t *testing.T) {
	s := newTestServer(t)
	s.chat.chunks = []string{
		"Hier ",
		"die Karte:\n```js",
		"on\n{\"component\":\"map\",\"text\":\"Rathaus\"}\n``",
		"`\nwird nie gesendet",
	}

	w := s.do(t, http.MethodPost, "/v1/tenants/t1/chat/stream", map[string]any{"query": "Wo ist das Rathaus?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: Hier"), body)
	assert.Contains(t, body, "event: ui_component\ndata: {\"component\":\"map\",\"text\":\"Rathaus\"}\n\n")
	assert.True(t, strings.HasSuffix(body, "event: done\ndata: \n\n"), body)
	assert.NotContains(t, body, "wird nie gesendet")

	// 流开始前的错误以 JSON 返回
	w = s.do(t, http.MethodPost, "/v1/tenants/nobody/chat/stream", map[string]any{"query": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestStatsAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/v1/tenants/t1/search?q=x", nil)

	w := s.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	decode(t, w, &stats)
	assert.Contains(t, stats, "search")
	assert.Contains(t, stats, "index_pool")

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tenant_kb_search_total 1")
	assert.Contains(t, w.Body.String(), "# TYPE tenant_kb_search_total counter")
	assert.Contains(t, w.Body.String(), "tenant_kb_uptime_seconds")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   model.StreamEvent
		want string
	}{
		{"text", model.TextDelta("Hallo"), "data: Hallo\n\n"},
		{"multiline", model.TextDelta("a\nb"), "data: a\ndata: b\n\n"},
		{"component", model.ComponentEvent([]byte(`{"component":"map"}`)), "event: ui_component\ndata: {\"component\":\"map\"}\n\n"},
		{"structured", model.StructuredData([]byte(`{"a":1}`)), "event: structured_data\ndata: {\"a\":1}\n\n"},
		{"done", model.Done(), "event: done\ndata: \n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handler.FormatEvent(tt.ev))
		})
	}
}
