// Package metrics 提供知识库服务的业务指标收集。
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// KBMetrics 知识库服务业务指标。
type KBMetrics struct {
	// 集合生命周期
	collectionsCreated  atomic.Uint64
	collectionsRepaired atomic.Uint64
	collectionErrors    atomic.Uint64

	// 索引
	documentsIndexed atomic.Uint64
	entitiesStored   atomic.Uint64
	indexErrors      atomic.Uint64

	// 检索
	searchTotal            atomic.Uint64
	searchCollectionErrors atomic.Uint64
	searchDurationNanos    atomic.Int64

	// 回答
	answersTotal     atomic.Uint64
	answerCacheHits  atomic.Uint64
	streamsTotal     atomic.Uint64
	componentEvents  atomic.Uint64
	structuredEvents atomic.Uint64
	llmErrors        atomic.Uint64

	mu        sync.RWMutex
	startTime time.Time
}

var (
	global     *KBMetrics
	globalOnce sync.Once
)

// New 创建独立的指标实例。
func New() *KBMetrics {
	return &KBMetrics{startTime: time.Now()}
}

// Global 获取全局指标实例。
func Global() *KBMetrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordCollectionCreate 记录一次集合创建。
func (m *KBMetrics) RecordCollectionCreate(err error) {
	if err != nil {
		m.collectionErrors.Add(1)
		return
	}
	m.collectionsCreated.Add(1)
}

// RecordCollectionRepair 记录一次集合修复。
func (m *KBMetrics) RecordCollectionRepair() {
	m.collectionsRepaired.Add(1)
}

// RecordDocumentIndexed 记录文档索引结果。
func (m *KBMetrics) RecordDocumentIndexed(err error) {
	if err != nil {
		m.indexErrors.Add(1)
		return
	}
	m.documentsIndexed.Add(1)
}

// RecordEntityStored 记录结构化实体写入结果。
func (m *KBMetrics) RecordEntityStored(err error) {
	if err != nil {
		m.indexErrors.Add(1)
		return
	}
	m.entitiesStored.Add(1)
}

// RecordSearch 记录一次跨集合检索及其中失败的集合数。
func (m *KBMetrics) RecordSearch(d time.Duration, failedCollections int) {
	m.searchTotal.Add(1)
	m.searchDurationNanos.Add(int64(d))
	if failedCollections > 0 {
		m.searchCollectionErrors.Add(uint64(failedCollections))
	}
}

// RecordAnswer 记录一次非流式回答。
func (m *KBMetrics) RecordAnswer(cacheHit bool, err error) {
	m.answersTotal.Add(1)
	if err != nil {
		m.llmErrors.Add(1)
		return
	}
	if cacheHit {
		m.answerCacheHits.Add(1)
	}
}

// RecordStream 记录一次流式对话的结果。
func (m *KBMetrics) RecordStream(component, structured bool, err error) {
	m.streamsTotal.Add(1)
	if component {
		m.componentEvents.Add(1)
	}
	if structured {
		m.structuredEvents.Add(1)
	}
	if err != nil {
		m.llmErrors.Add(1)
	}
}

// Stats 返回当前统计信息（用于 API）。
func (m *KBMetrics) Stats() map[string]any {
	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()

	searches := m.searchTotal.Load()
	avgSearch := 0.0
	if searches > 0 {
		avgSearch = time.Duration(m.searchDurationNanos.Load()).Seconds() / float64(searches)
	}

	return map[string]any{
		"collections": map[string]any{
			"created":  m.collectionsCreated.Load(),
			"repaired": m.collectionsRepaired.Load(),
			"errors":   m.collectionErrors.Load(),
		},
		"indexing": map[string]any{
			"documents_indexed": m.documentsIndexed.Load(),
			"entities_stored":   m.entitiesStored.Load(),
			"errors":            m.indexErrors.Load(),
		},
		"search": map[string]any{
			"total":             searches,
			"avg_duration_secs": avgSearch,
			"collection_errors": m.searchCollectionErrors.Load(),
		},
		"answers": map[string]any{
			"total":             m.answersTotal.Load(),
			"cache_hits":        m.answerCacheHits.Load(),
			"streams":           m.streamsTotal.Load(),
			"component_events":  m.componentEvents.Load(),
			"structured_events": m.structuredEvents.Load(),
			"llm_errors":        m.llmErrors.Load(),
		},
		"uptime_seconds": time.Since(start).Seconds(),
	}
}

// Registry 返回以 namespace 为前缀的 Prometheus 注册表。
// 计数器通过 CounterFunc 读取原子值，不重复计数。
func (m *KBMetrics) Registry(namespace string) *prometheus.Registry {
	counters := []struct {
		name, help string
		val        *atomic.Uint64
	}{
		{"collections_created_total", "Collections created.", &m.collectionsCreated},
		{"collections_repaired_total", "Collections repaired by validation.", &m.collectionsRepaired},
		{"collection_errors_total", "Collection create or repair failures.", &m.collectionErrors},
		{"documents_indexed_total", "Documents written to the vector store.", &m.documentsIndexed},
		{"entities_stored_total", "Structured entities written to the vector store.", &m.entitiesStored},
		{"index_errors_total", "Indexing failures.", &m.indexErrors},
		{"search_total", "Cross-collection searches.", &m.searchTotal},
		{"search_collection_errors_total", "Per-collection query failures skipped during search.", &m.searchCollectionErrors},
		{"answers_total", "Non-streaming answers.", &m.answersTotal},
		{"answer_cache_hits_total", "Answers served from cache.", &m.answerCacheHits},
		{"streams_total", "Streaming chats.", &m.streamsTotal},
		{"component_events_total", "UI component events emitted.", &m.componentEvents},
		{"structured_events_total", "Structured data events emitted.", &m.structuredEvents},
		{"llm_errors_total", "Language model failures.", &m.llmErrors},
	}

	reg := prometheus.NewRegistry()
	for _, c := range counters {
		val := c.val
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(val.Load()) }))
	}
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds_total",
			Help:      "Time spent in cross-collection searches.",
		}, func() float64 { return time.Duration(m.searchDurationNanos.Load()).Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the metrics were started or reset.",
		}, func() float64 {
			m.mu.RLock()
			defer m.mu.RUnlock()
			return time.Since(m.startTime).Seconds()
		}),
	)
	return reg
}

// Reset 重置所有指标（仅用于测试）。
func (m *KBMetrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.collectionsCreated, &m.collectionsRepaired, &m.collectionErrors,
		&m.documentsIndexed, &m.entitiesStored, &m.indexErrors,
		&m.searchTotal, &m.searchCollectionErrors,
		&m.answersTotal, &m.answerCacheHits, &m.streamsTotal,
		&m.componentEvents, &m.structuredEvents, &m.llmErrors,
	} {
		c.Store(0)
	}
	m.searchDurationNanos.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
