package sync

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/jaytaylor/html2text"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/er"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/tracing"
)

const (
	// defaultMaxPages bounds a single sync cycle against a runaway change stream
	defaultMaxPages = 1000
	// readinessAttempts bounds the initial sync readiness poll
	readinessAttempts = 30
)

type syncService struct {
	accountRepo    interfaces.AccountRepository
	providerClient interfaces.ProviderClient
	reconciler     interfaces.ReconcileService
	searchService  interfaces.SearchService
	events         interfaces.EventPublisher
	throttle       *ThrottleGuard
	log            logger.Logger
	maxPages       int
}

func NewSyncService(
	accountRepo interfaces.AccountRepository,
	providerClient interfaces.ProviderClient,
	reconciler interfaces.ReconcileService,
	searchService interfaces.SearchService,
	events interfaces.EventPublisher,
	throttle *ThrottleGuard,
	log logger.Logger,
	maxPages int,
) interfaces.SyncService {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &syncService{
		accountRepo:    accountRepo,
		providerClient: providerClient,
		reconciler:     reconciler,
		searchService:  searchService,
		events:         events,
		throttle:       throttle,
		log:            log,
		maxPages:       maxPages,
	}
}

func (s *syncService) InitialSync(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.InitialSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	deltaToken, err := s.waitForReadiness(ctx, account.AccessToken)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.searchService.Initialize(ctx, accountID); err != nil {
		// Search degrades, ingestion continues
		s.log.Warnf("search index initialization failed for account %s: %v", accountID, err)
	}

	recordCount, nextDeltaToken, err := s.drainChangeStream(ctx, account, deltaToken)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.finishCycle(ctx, span, account, "initial", recordCount, nextDeltaToken)
	return nil
}

func (s *syncService) IncrementalSync(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.IncrementalSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if account.NextDeltaToken == nil || *account.NextDeltaToken == "" {
		tracing.TraceErr(span, er.ErrMissingDeltaToken)
		return er.ErrMissingDeltaToken
	}

	recordCount, nextDeltaToken, err := s.drainChangeStream(ctx, account, *account.NextDeltaToken)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.finishCycle(ctx, span, account, "incremental", recordCount, nextDeltaToken)
	return nil
}

func (s *syncService) TriggerIncrementalSync(ctx context.Context, accountID string) {
	if !s.throttle.TryAcquire(accountID) {
		return
	}

	// Detach from the caller so an HTTP disconnect cannot abandon a half-done
	// cycle before the delta token is persisted
	syncCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.throttle.Release(accountID)
		defer tracing.RecoverAndLogToJaeger(s.log)

		if err := s.IncrementalSync(syncCtx, accountID); err != nil {
			s.log.Errorf("incremental sync failed for account %s: %v", accountID, err)
		}
	}()
}

func (s *syncService) loadAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, er.ErrAccountNotFound
	}
	if account.AccessToken == "" {
		return nil, er.ErrMissingAccessToken
	}
	return account, nil
}

// waitForReadiness polls the provider until the sync backfill is ready and
// hands back the first delta token
func (s *syncService) waitForReadiness(ctx context.Context, accessToken string) (string, error) {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; attempt < readinessAttempts; attempt++ {
		response, err := s.providerClient.StartSync(ctx, accessToken)
		if err != nil {
			return "", err
		}
		if response.Ready {
			if response.SyncUpdatedToken == "" {
				return "", errors.New("provider reported ready without a sync token")
			}
			return response.SyncUpdatedToken, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return "", errors.New("provider sync never became ready")
}

// drainChangeStream walks the full change stream starting at deltaToken and
// reconciles every page. The returned delta token is the most recent non-empty
// one seen; the provider may only attach it to the final page.
func (s *syncService) drainChangeStream(ctx context.Context, account *models.Account, deltaToken string) (int, string, error) {
	recordCount := 0
	nextDeltaToken := ""
	pageToken := ""

	for page := 0; page < s.maxPages; page++ {
		var response *dto.SyncUpdatedResponse
		var err error
		if pageToken != "" {
			response, err = s.providerClient.GetUpdated(ctx, account.AccessToken, "", pageToken)
		} else {
			response, err = s.providerClient.GetUpdated(ctx, account.AccessToken, deltaToken, "")
		}
		if err != nil {
			return recordCount, nextDeltaToken, err
		}

		if len(response.Records) > 0 {
			s.reconciler.ReconcileBatch(ctx, account.ID, response.Records)
			s.indexRecords(ctx, account.ID, response.Records)
			recordCount += len(response.Records)
		}

		if response.NextDeltaToken != "" {
			nextDeltaToken = response.NextDeltaToken
		}
		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}
	return recordCount, nextDeltaToken, nil
}

// finishCycle persists the delta token after all records were handed to the
// reconciler, then announces the cycle
func (s *syncService) finishCycle(ctx context.Context, span opentracing.Span, account *models.Account, mode string, recordCount int, nextDeltaToken string) {
	span.SetTag("records", recordCount)

	if nextDeltaToken != "" {
		if err := s.accountRepo.SaveDeltaToken(ctx, account.ID, nextDeltaToken); err != nil {
			// The next cycle replays this one; reconciliation is idempotent
			s.log.Errorf("failed to save delta token for account %s: %v", account.ID, err)
			tracing.TraceErr(span, err)
		}
	}

	if s.events != nil {
		event := dto.SyncCompleted{
			AccountID:   account.ID,
			Mode:        mode,
			RecordCount: recordCount,
			DeltaToken:  nextDeltaToken,
		}
		if err := s.events.PublishSyncCompleted(ctx, event); err != nil {
			s.log.Warnf("failed to publish sync completed event for account %s: %v", account.ID, err)
		}
	}
}

func (s *syncService) indexRecords(ctx context.Context, accountID string, records []dto.EmailMessage) {
	for i := range records {
		record := records[i]
		plainBody, err := html2text.FromString(record.Body, html2text.Options{TextOnly: true})
		if err != nil {
			plainBody = record.BodySnippet
		}

		to := make([]string, 0, len(record.To))
		for _, addr := range record.To {
			to = append(to, addr.Address)
		}

		doc := interfaces.SearchDocument{
			EmailID:  record.ID,
			Subject:  record.Subject,
			Body:     plainBody,
			RawBody:  record.Body,
			From:     record.From.Address,
			To:       to,
			SentAt:   record.SentAt.Format(time.RFC3339),
			ThreadID: record.ThreadID,
		}
		if doc.EmailID == "" {
			doc.EmailID = record.InternetMessageID
		}
		if err := s.searchService.Insert(ctx, accountID, doc); err != nil {
			s.log.Warnf("failed to index email %s: %v", doc.EmailID, err)
		}
	}
}
