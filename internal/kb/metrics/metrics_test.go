package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobal(t *testing.T) {
	assert.Same(t, Global(), Global())
}

func TestRecord(t *testing.T) {
	m := New()

	m.RecordCollectionCreate(nil)
	m.RecordCollectionCreate(errors.New("boom"))
	m.RecordCollectionRepair()
	m.RecordDocumentIndexed(nil)
	m.RecordEntityStored(nil)
	m.RecordEntityStored(errors.New("boom"))
	m.RecordSearch(100*time.Millisecond, 2)
	m.RecordAnswer(true, nil)
	m.RecordAnswer(false, errors.New("llm"))
	m.RecordStream(true, false, nil)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats["collections"].(map[string]any)["created"])
	assert.Equal(t, uint64(1), stats["collections"].(map[string]any)["errors"])
	assert.Equal(t, uint64(1), stats["indexing"].(map[string]any)["errors"])
	assert.Equal(t, uint64(2), stats["search"].(map[string]any)["collection_errors"])
	assert.InDelta(t, 0.1, stats["search"].(map[string]any)["avg_duration_secs"], 1e-9)
	assert.Equal(t, uint64(1), stats["answers"].(map[string]any)["cache_hits"])
	assert.Equal(t, uint64(1), stats["answers"].(map[string]any)["llm_errors"])
	assert.Equal(t, uint64(1), stats["answers"].(map[string]any)["component_events"])

	m.Reset()
	assert.Equal(t, uint64(0), m.Stats()["search"].(map[string]any)["total"])
}

func TestConcurrentRecord(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordDocumentIndexed(nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), m.Stats()["indexing"].(map[string]any)["documents_indexed"])
}

func TestRegistry(t *testing.T) {
	m := New()
	m.RecordSearch(250*time.Millisecond, 0)
	m.RecordStream(false, true, nil)

	families, err := m.Registry("kb").Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}
	require.Contains(t, byName, "kb_search_total")
	assert.Equal(t, dto.MetricType_COUNTER, byName["kb_search_total"].GetType())
	assert.Equal(t, 1.0, byName["kb_search_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, byName["kb_structured_events_total"].GetMetric()[0].GetCounter().GetValue())
	assert.InDelta(t, 0.25, byName["kb_search_duration_seconds_total"].GetMetric()[0].GetCounter().GetValue(), 1e-9)
	assert.Equal(t, dto.MetricType_GAUGE, byName["kb_uptime_seconds"].GetType())

	// 注册表读取的是实时值
	m.RecordSearch(0, 0)
	families, err = m.Registry("kb").Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "kb_search_total" {
			assert.Equal(t, 2.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
