package search

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/dealflow/mailsync/interfaces"
)

// schemaVersion guards persisted index blobs. A blob written by another
// version is discarded and the index rebuilt from scratch by the next sync.
const schemaVersion = 1

// maxIndexedBodyChars caps how much body text a single document contributes
const maxIndexedBodyChars = 2000

// Index is a per-account hybrid search index: an inverted lexical index plus
// stored embeddings for cosine similarity. It serializes to a single JSON
// blob so it can ride along in the accounts table.
type Index struct {
	SchemaVersion int                                  `json:"schemaVersion"`
	Docs          map[string]interfaces.SearchDocument `json:"docs"`
	// Postings maps term -> docID -> term frequency
	Postings map[string]map[string]int `json:"postings"`
}

func NewIndex() *Index {
	return &Index{
		SchemaVersion: schemaVersion,
		Docs:          map[string]interfaces.SearchDocument{},
		Postings:      map[string]map[string]int{},
	}
}

// LoadIndex deserializes a persisted blob. A version mismatch is reported as
// an error so callers know to rebuild rather than trust stale postings.
func LoadIndex(blob []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(blob, &idx); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal search index")
	}
	if idx.SchemaVersion != schemaVersion {
		return nil, errors.Errorf("search index schema version %d does not match %d", idx.SchemaVersion, schemaVersion)
	}
	if idx.Docs == nil {
		idx.Docs = map[string]interfaces.SearchDocument{}
	}
	if idx.Postings == nil {
		idx.Postings = map[string]map[string]int{}
	}
	return &idx, nil
}

func (i *Index) Serialize() ([]byte, error) {
	return json.Marshal(i)
}

// Insert adds or replaces a document. Body fields are truncated so one huge
// email cannot balloon the blob.
func (i *Index) Insert(doc interfaces.SearchDocument) {
	doc.Body = truncate(doc.Body, maxIndexedBodyChars)
	doc.RawBody = truncate(doc.RawBody, maxIndexedBodyChars)

	if _, ok := i.Docs[doc.EmailID]; ok {
		i.remove(doc.EmailID)
	}
	i.Docs[doc.EmailID] = doc

	terms := tokenize(doc.Subject + " " + doc.Body + " " + doc.From + " " + strings.Join(doc.To, " "))
	for _, term := range terms {
		if i.Postings[term] == nil {
			i.Postings[term] = map[string]int{}
		}
		i.Postings[term][doc.EmailID]++
	}
}

func (i *Index) remove(docID string) {
	for term, posting := range i.Postings {
		delete(posting, docID)
		if len(posting) == 0 {
			delete(i.Postings, term)
		}
	}
	delete(i.Docs, docID)
}

// Search runs the lexical leg: documents matching more query terms, and
// matching them more often, rank higher.
func (i *Index) Search(term string, limit int) []interfaces.SearchHit {
	queryTerms := tokenize(term)
	if len(queryTerms) == 0 {
		return nil
	}

	scores := map[string]float64{}
	matched := map[string]int{}
	for _, qt := range queryTerms {
		for docID, tf := range i.Postings[qt] {
			scores[docID] += float64(tf)
			matched[docID]++
		}
	}

	hits := make([]interfaces.SearchHit, 0, len(scores))
	for docID, score := range scores {
		doc, ok := i.Docs[docID]
		if !ok {
			continue
		}
		hits = append(hits, interfaces.SearchHit{
			Document: doc,
			Score:    score * float64(matched[docID]) / float64(len(queryTerms)),
		})
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// VectorSearch ranks documents by cosine similarity against the query
// embedding. Results below the similarity floor are dropped.
func (i *Index) VectorSearch(queryEmbedding []float32, minSimilarity float64, limit int) []interfaces.SearchHit {
	if len(queryEmbedding) == 0 {
		return nil
	}

	var hits []interfaces.SearchHit
	for _, doc := range i.Docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		similarity := cosineSimilarity(queryEmbedding, doc.Embedding)
		if similarity < minSimilarity {
			continue
		}
		hits = append(hits, interfaces.SearchHit{
			Document: doc,
			Score:    similarity,
		})
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// HybridSearch merges the lexical and vector legs. A document scores the sum
// of its leg scores, so matching both ranks it above matching either alone.
func (i *Index) HybridSearch(term string, queryEmbedding []float32, minSimilarity float64, limit int) []interfaces.SearchHit {
	combined := map[string]interfaces.SearchHit{}
	for _, hit := range i.Search(term, 0) {
		combined[hit.Document.EmailID] = hit
	}
	for _, hit := range i.VectorSearch(queryEmbedding, minSimilarity, 0) {
		if existing, ok := combined[hit.Document.EmailID]; ok {
			existing.Score += hit.Score
			combined[hit.Document.EmailID] = existing
		} else {
			combined[hit.Document.EmailID] = hit
		}
	}

	hits := make([]interfaces.SearchHit, 0, len(combined))
	for _, hit := range combined {
		hits = append(hits, hit)
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func sortHits(hits []interfaces.SearchHit) {
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Document.EmailID < hits[b].Document.EmailID
	})
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for idx := 0; idx < n; idx++ {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '@' && r != '.'
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if len(f) < 2 {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
