package search

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/tracing"
)

const (
	// vectorSimilarityFloor drops weak semantic matches
	vectorSimilarityFloor = 0.85
	vectorResultCap       = 5
	cachedAccountIndexes  = 128
)

// accountIndex serializes all mutations of one account's index
type accountIndex struct {
	mu  sync.Mutex
	idx *Index
}

type searchService struct {
	accountRepo interfaces.AccountRepository
	embeddings  interfaces.EmbeddingService
	log         logger.Logger
	cache       *lru.Cache[string, *accountIndex]
	loadMu      sync.Mutex
}

func NewSearchService(accountRepo interfaces.AccountRepository, embeddings interfaces.EmbeddingService, log logger.Logger) interfaces.SearchService {
	cache, _ := lru.New[string, *accountIndex](cachedAccountIndexes)
	return &searchService{
		accountRepo: accountRepo,
		embeddings:  embeddings,
		log:         log,
		cache:       cache,
	}
}

func (s *searchService) Initialize(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchService.Initialize")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	_, err := s.ensureIndex(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (s *searchService) Insert(ctx context.Context, accountID string, doc interfaces.SearchDocument) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchService.Insert")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)
	span.SetTag(tracing.SpanTagEntityId, doc.EmailID)

	holder, err := s.ensureIndex(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if len(doc.Embedding) == 0 && s.embeddings != nil {
		embedding, embedErr := s.embeddings.GetEmbedding(ctx, doc.Subject+"\n"+doc.Body)
		if embedErr != nil {
			// Lexical search still works without the vector leg
			s.log.Warnf("embedding for email %s failed: %v", doc.EmailID, embedErr)
		} else {
			doc.Embedding = embedding
		}
	}

	holder.mu.Lock()
	holder.idx.Insert(doc)
	blob, serializeErr := holder.idx.Serialize()
	holder.mu.Unlock()
	if serializeErr != nil {
		tracing.TraceErr(span, serializeErr)
		return serializeErr
	}

	// Last writer wins. Losing a blob write only costs a rebuild.
	if saveErr := s.accountRepo.SaveSearchIndex(ctx, accountID, blob); saveErr != nil {
		s.log.Errorf("failed to persist search index for account %s: %v", accountID, saveErr)
		tracing.TraceErr(span, saveErr)
	}
	return nil
}

func (s *searchService) Search(ctx context.Context, accountID, term string, limit int) ([]interfaces.SearchHit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchService.Search")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	holder, err := s.ensureIndex(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	holder.mu.Lock()
	hits := holder.idx.Search(term, limit)
	holder.mu.Unlock()
	span.SetTag("hits", len(hits))
	return hits, nil
}

func (s *searchService) VectorSearch(ctx context.Context, accountID, term string, limit int) ([]interfaces.SearchHit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchService.VectorSearch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	holder, err := s.ensureIndex(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if limit <= 0 || limit > vectorResultCap {
		limit = vectorResultCap
	}

	var embedding []float32
	if s.embeddings != nil {
		embedding, err = s.embeddings.GetEmbedding(ctx, term)
		if err != nil {
			s.log.Warnf("query embedding failed, falling back to lexical search: %v", err)
		}
	}

	holder.mu.Lock()
	var hits []interfaces.SearchHit
	if len(embedding) == 0 {
		// Embedding unavailable; the lexical leg carries the query alone
		hits = holder.idx.Search(term, limit)
	} else {
		hits = holder.idx.HybridSearch(term, embedding, vectorSimilarityFloor, limit)
	}
	holder.mu.Unlock()
	span.SetTag("hits", len(hits))
	return hits, nil
}

func (s *searchService) ensureIndex(ctx context.Context, accountID string) (*accountIndex, error) {
	if holder, ok := s.cache.Get(accountID); ok {
		return holder, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if holder, ok := s.cache.Get(accountID); ok {
		return holder, nil
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Errorf("account %s not found", accountID)
	}

	idx := NewIndex()
	fresh := true
	if len(account.SearchIndex) > 0 {
		loaded, loadErr := LoadIndex(account.SearchIndex)
		if loadErr != nil {
			// Stale or corrupt blob. Rebuild from scratch.
			s.log.Warnf("discarding search index for account %s: %v", accountID, loadErr)
		} else {
			idx = loaded
			fresh = false
		}
	}
	if fresh {
		// Persist right away so concurrent initializers converge on one blob
		if blob, serializeErr := idx.Serialize(); serializeErr == nil {
			if saveErr := s.accountRepo.SaveSearchIndex(ctx, accountID, blob); saveErr != nil {
				s.log.Warnf("failed to persist fresh search index for account %s: %v", accountID, saveErr)
			}
		}
	}

	holder := &accountIndex{idx: idx}
	s.cache.Add(accountID, holder)
	return holder, nil
}
