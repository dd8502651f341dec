package store

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bagEmbedder hashes words into a small vector.
type bagEmbedder struct{}

func (bagEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = bagEmbedder{}.EmbedSingle(ctx, t)
	}
	return out, nil
}

func (bagEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 32)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%32]++
	}
	return v, nil
}

func (bagEmbedder) Name() string { return "bag" }

func newCollection(t *testing.T, s *MemoryStore, name string) {
	t.Helper()
	require.NoError(t, s.CreateCollection(context.Background(), CollectionSpec{
		Name:       name,
		Properties: []Property{{Name: "doc_id"}, {Name: "title"}},
	}))
}

func TestMemoryStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	newCollection(t, s, "TenantAbcDocument")
	err := s.CreateCollection(ctx, CollectionSpec{Name: "TenantAbcDocument"})
	assert.ErrorIs(t, err, ErrCollectionExists)

	ok, err := s.CollectionExists(ctx, "TenantAbcDocument")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CollectionExists(ctx, "Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TenantAbcDocument"}, names)

	require.NoError(t, s.DeleteCollection(ctx, "TenantAbcDocument"))
	assert.ErrorIs(t, s.DeleteCollection(ctx, "TenantAbcDocument"), ErrCollectionNotFound)
}

func TestMemoryStore_ObjectCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(bagEmbedder{})
	newCollection(t, s, "C")

	oid, err := s.Insert(ctx, "C", Object{Properties: map[string]any{"doc_id": "d1", "title": "Rathaus"}, Text: "Rathaus Öffnungszeiten"})
	require.NoError(t, err)
	require.NotEmpty(t, oid)

	obj, err := s.FetchByID(ctx, "C", oid, true)
	require.NoError(t, err)
	assert.Equal(t, "Rathaus", obj.Properties["title"])
	assert.True(t, HasEmbedding(obj.Vector))

	obj, err = s.FetchByID(ctx, "C", oid, false)
	require.NoError(t, err)
	assert.Nil(t, obj.Vector)

	require.NoError(t, s.UpdateByID(ctx, "C", Object{ID: oid, Properties: map[string]any{"doc_id": "d1", "title": "Bürgeramt"}, Text: "Bürgeramt"}))
	obj, err = s.FetchByID(ctx, "C", oid, false)
	require.NoError(t, err)
	assert.Equal(t, "Bürgeramt", obj.Properties["title"])

	assert.ErrorIs(t, s.UpdateByID(ctx, "C", Object{ID: "nope"}), ErrObjectNotFound)

	require.NoError(t, s.DeleteByID(ctx, "C", oid))
	_, err = s.FetchByID(ctx, "C", oid, false)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, s.DeleteByID(ctx, "C", oid), ErrObjectNotFound)

	_, err = s.Insert(ctx, "Missing", Object{Text: "x"})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestMemoryStore_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	newCollection(t, s, "C")

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, "C", Object{Properties: map[string]any{"doc_id": "dup"}, Text: "a"})
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, "C", Object{Properties: map[string]any{"doc_id": "other"}, Text: "b"})
	require.NoError(t, err)

	n, err := s.DeleteWhere(ctx, "C", "doc_id", "dup")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.DeleteWhere(ctx, "C", "doc_id", "dup")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_HybridQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(bagEmbedder{})
	newCollection(t, s, "C")

	texts := map[string]string{
		"a": "Öffnungszeiten des Rathauses am Montag",
		"b": "Müllabfuhr Termine",
		"c": "Rathaus Öffnungszeiten und Kontakt",
	}
	for oid, text := range texts {
		_, err := s.Insert(ctx, "C", Object{ID: oid, Properties: map[string]any{"title": oid}, Text: text})
		require.NoError(t, err)
	}

	hits, err := s.HybridQuery(ctx, "C", "Rathaus Öffnungszeiten", 0.5, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c", hits[0].ID)
	for i, h := range hits {
		require.NotNil(t, h.Score)
		assert.GreaterOrEqual(t, *h.Score, 0.0)
		assert.LessOrEqual(t, *h.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, *hits[i-1].Score, *h.Score)
		}
	}

	hits, err = s.HybridQuery(ctx, "C", "Rathaus Öffnungszeiten", 0.5, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = s.HybridQuery(ctx, "Missing", "x", 0.5, 1)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestMemoryStore_KeywordOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	newCollection(t, s, "C")

	_, err := s.Insert(ctx, "C", Object{ID: "x", Text: "Schwimmbad Eintritt"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "C", Object{ID: "y", Text: "Bibliothek"})
	require.NoError(t, err)

	hits, err := s.HybridQuery(ctx, "C", "schwimmbad", 0.75, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].ID)
	assert.Equal(t, 1.0, *hits[0].Score)

	obj, err := s.FetchByID(ctx, "C", "x", true)
	require.NoError(t, err)
	assert.False(t, HasEmbedding(obj.Vector))
}

func TestMemoryStore_KeywordKeepsLowestMatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	newCollection(t, s, "C")

	_, err := s.Insert(ctx, "C", Object{ID: "a", Text: "Rathaus Rathaus Rathaus Öffnungszeiten"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "C", Object{ID: "b", Text: "Das Rathaus liegt am Marktplatz neben der Kirche und der alten Schule"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "C", Object{ID: "c", Text: "Bibliothek"})
	require.NoError(t, err)

	hits, err := s.HybridQuery(ctx, "C", "Rathaus", 0.75, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	ids := []string{hits[0].ID, hits[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	for _, h := range hits {
		require.NotNil(t, h.Score)
		assert.GreaterOrEqual(t, *h.Score, 0.0)
		assert.LessOrEqual(t, *h.Score, 1.0)
	}
	assert.GreaterOrEqual(t, *hits[0].Score, *hits[1].Score)
}

func TestHasEmbedding(t *testing.T) {
	assert.False(t, HasEmbedding(nil))
	assert.False(t, HasEmbedding([]float32{0, 0}))
	assert.True(t, HasEmbedding([]float32{0, 0.1}))
}
