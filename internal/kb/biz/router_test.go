package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
)

func scoredHits(title string, scores ...float64) []store.Hit {
	hits := make([]store.Hit, 0, len(scores))
	for _, s := range scores {
		hits = append(hits, store.Hit{
			ID:         title,
			Properties: map[string]any{propTitle: title, propContent: "c"},
			Score:      ptr(s),
		})
	}
	return hits
}

func TestSearchRouter_MergeOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	docs, err := f.collections.Create(ctx, "t1", model.ContentTypeDocument)
	require.NoError(t, err)
	events, err := f.collections.Create(ctx, "t1", model.ContentTypeEvent)
	require.NoError(t, err)
	f.store.hits[docs] = scoredHits("doc", 0.9, 0.4)
	f.store.hits[events] = scoredHits("event", 0.8, 0.2)

	results := f.router.Search(ctx, "t1", "x", 5)
	scores := make([]float64, 0, len(results))
	for _, r := range results {
		scores = append(scores, r.Score)
	}
	assert.Equal(t, []float64{0.9, 0.8, 0.4, 0.2}, scores)
	assert.Equal(t, model.ContentTypeEvent, results[1].Type)
}

func TestSearchRouter_SkipsFailingCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	docs, err := f.collections.Create(ctx, "t1", model.ContentTypeDocument)
	require.NoError(t, err)
	offices, err := f.collections.Create(ctx, "t1", model.ContentTypeOffice)
	require.NoError(t, err)
	f.store.hits[docs] = scoredHits("doc", 0.7)
	f.store.queryErrs[offices] = errTransport

	results := f.router.Search(ctx, "t1", "x", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "doc", results[0].Title)
	assert.Equal(t, uint64(1), f.metrics.Stats()["search"].(map[string]any)["collection_errors"])
}

func TestSearchRouter_NoMergeCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	docs, err := f.collections.Create(ctx, "t1", model.ContentTypeDocument)
	require.NoError(t, err)
	schools, err := f.collections.Create(ctx, "t1", model.ContentTypeSchool)
	require.NoError(t, err)
	f.store.hits[docs] = scoredHits("doc", 0.5, 0.4)
	f.store.hits[schools] = scoredHits("school", 0.3, 0.2)

	assert.Len(t, f.router.Search(ctx, "t1", "x", 2), 4)
}

func TestSearchRouter_FreshTenant(t *testing.T) {
	f := newFixture(t, bagEmbedder{})
	results := f.router.Search(context.Background(), "fresh", "öffnungszeiten", 5)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchRouter_StoreUnreachable(t *testing.T) {
	f := newFixture(t, nil)
	f.store.listErr = errTransport
	results := f.router.Search(context.Background(), "t1", "x", 5)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchRouter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, bagEmbedder{})

	_, err := f.documents.Add(ctx, "t1", "Müllabfuhr", "Die Abholung der Biotonne erfolgt dienstags.", nil, "")
	require.NoError(t, err)
	_, err = f.entities.Store(ctx, "t1", model.ContentTypeOffice, map[string]any{"name": "Abfallberatung", "description": "Fragen zur Biotonne"})
	require.NoError(t, err)
	_, err = f.documents.Add(ctx, "t2", "Biotonne", "anderer Mandant", nil, "")
	require.NoError(t, err)

	results := f.router.Search(ctx, "t1", "Biotonne", 5)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.NotEqual(t, "anderer Mandant", r.Content)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.3, normalizeScore(store.Hit{Score: ptr(0.3)}))
	assert.Equal(t, 1.0, normalizeScore(store.Hit{Score: ptr(7.5)}))
	assert.Equal(t, 0.6, normalizeScore(store.Hit{Certainty: ptr(0.6)}))
	assert.InDelta(t, 0.75, normalizeScore(store.Hit{Distance: ptr(0.25)}), 1e-9)
	assert.Equal(t, 0.0, normalizeScore(store.Hit{Distance: ptr(1.5)}))
	assert.Equal(t, 0.0, normalizeScore(store.Hit{}))
}
