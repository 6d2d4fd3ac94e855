package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow/mailsync/interfaces"
)

func doc(id, subject, body string) interfaces.SearchDocument {
	return interfaces.SearchDocument{
		EmailID:  id,
		Subject:  subject,
		Body:     body,
		From:     "bob@example.com",
		To:       []string{"alice@example.com"},
		ThreadID: "thread_1",
	}
}

func TestIndex_SerializeRoundTrip(t *testing.T) {
	idx := NewIndex()
	idx.Insert(doc("e1", "Quarterly report", "revenue grew twelve percent"))
	idx.Insert(doc("e2", "Lunch", "pizza on friday"))

	blob, err := idx.Serialize()
	require.NoError(t, err)

	loaded, err := LoadIndex(blob)
	require.NoError(t, err)

	hits := loaded.Search("revenue", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "e1", hits[0].Document.EmailID)
}

func TestLoadIndex_RejectsWrongSchemaVersion(t *testing.T) {
	idx := NewIndex()
	idx.SchemaVersion = 99
	blob, err := idx.Serialize()
	require.NoError(t, err)

	_, err = LoadIndex(blob)
	assert.Error(t, err)
}

func TestLoadIndex_RejectsGarbage(t *testing.T) {
	_, err := LoadIndex([]byte("not json"))
	assert.Error(t, err)
}

func TestIndex_TruncatesBody(t *testing.T) {
	idx := NewIndex()
	long := strings.Repeat("a", maxIndexedBodyChars*2)
	d := doc("e1", "s", long)
	d.RawBody = long
	idx.Insert(d)

	stored := idx.Docs["e1"]
	assert.Len(t, stored.Body, maxIndexedBodyChars)
	assert.Len(t, stored.RawBody, maxIndexedBodyChars)
}

func TestIndex_InsertReplacesDocument(t *testing.T) {
	idx := NewIndex()
	idx.Insert(doc("e1", "alpha", "one"))
	idx.Insert(doc("e1", "beta", "two"))

	assert.Len(t, idx.Docs, 1)
	assert.Empty(t, idx.Search("alpha", 10))
	assert.Len(t, idx.Search("beta", 10), 1)
}

func TestIndex_SearchRanksMultiTermMatchesHigher(t *testing.T) {
	idx := NewIndex()
	idx.Insert(doc("e1", "quarterly revenue report", "revenue details"))
	idx.Insert(doc("e2", "random subject", "revenue mention"))

	hits := idx.Search("quarterly revenue", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "e1", hits[0].Document.EmailID)
}

func TestIndex_SearchLimit(t *testing.T) {
	idx := NewIndex()
	idx.Insert(doc("e1", "hello", ""))
	idx.Insert(doc("e2", "hello", ""))
	idx.Insert(doc("e3", "hello", ""))

	assert.Len(t, idx.Search("hello", 2), 2)
}

func TestIndex_VectorSearchFloorAndOrder(t *testing.T) {
	idx := NewIndex()

	aligned := doc("e1", "s", "b")
	aligned.Embedding = []float32{1, 0, 0}
	idx.Insert(aligned)

	near := doc("e2", "s", "b")
	near.Embedding = []float32{0.9, 0.1, 0}
	idx.Insert(near)

	orthogonal := doc("e3", "s", "b")
	orthogonal.Embedding = []float32{0, 1, 0}
	idx.Insert(orthogonal)

	hits := idx.VectorSearch([]float32{1, 0, 0}, 0.85, 5)
	require.Len(t, hits, 2)
	assert.Equal(t, "e1", hits[0].Document.EmailID)
	assert.Equal(t, "e2", hits[1].Document.EmailID)
}

func TestIndex_HybridSearchCombinesLegs(t *testing.T) {
	idx := NewIndex()

	lexicalOnly := doc("e_lex", "budget numbers", "")
	idx.Insert(lexicalOnly)

	both := doc("e_both", "budget forecast", "")
	both.Embedding = []float32{1, 0, 0}
	idx.Insert(both)

	vectorOnly := doc("e_vec", "unrelated subject", "")
	vectorOnly.Embedding = []float32{0.99, 0.1, 0}
	idx.Insert(vectorOnly)

	hits := idx.HybridSearch("budget", []float32{1, 0, 0}, 0.85, 10)
	require.Len(t, hits, 3)

	// Scoring on both legs beats either leg alone
	assert.Equal(t, "e_both", hits[0].Document.EmailID)
	assert.Equal(t, "e_lex", hits[1].Document.EmailID)
	assert.Equal(t, "e_vec", hits[2].Document.EmailID)
}

func TestIndex_VectorSearchEmptyQuery(t *testing.T) {
	idx := NewIndex()
	d := doc("e1", "s", "b")
	d.Embedding = []float32{1, 0}
	idx.Insert(d)

	assert.Empty(t, idx.VectorSearch(nil, 0.85, 5))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestTokenize(t *testing.T) {
	terms := tokenize("Hello, World! bob@example.com re: Q3-numbers")
	assert.Contains(t, terms, "hello")
	assert.Contains(t, terms, "world")
	assert.Contains(t, terms, "bob@example.com")
	assert.Contains(t, terms, "q3")
	assert.Contains(t, terms, "numbers")
}
