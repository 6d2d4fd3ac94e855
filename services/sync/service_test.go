package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/er"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeAccountRepo struct {
	mu          sync.Mutex
	accounts    map[string]*models.Account
	savedTokens []string
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: map[string]*models.Account{}}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetAll(ctx context.Context) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeAccountRepo) SaveDeltaToken(ctx context.Context, accountID, deltaToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountID]; ok {
		token := deltaToken
		a.NextDeltaToken = &token
	}
	r.savedTokens = append(r.savedTokens, deltaToken)
	return nil
}

func (r *fakeAccountRepo) SaveSearchIndex(ctx context.Context, accountID string, blob []byte) error {
	return nil
}

type fakeProvider struct {
	mu          sync.Mutex
	syncResps   []*dto.SyncResponse
	pages       map[string]*dto.SyncUpdatedResponse
	gotTokens   []string
	syncCalls   int
	updateCalls int
}

func (p *fakeProvider) StartSync(ctx context.Context, accessToken string) (*dto.SyncResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	resp := p.syncResps[0]
	if len(p.syncResps) > 1 {
		p.syncResps = p.syncResps[1:]
	}
	p.syncCalls++
	return resp, nil
}

func (p *fakeProvider) GetUpdated(ctx context.Context, accessToken, deltaToken, pageToken string) (*dto.SyncUpdatedResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCalls++
	token := pageToken
	if token == "" {
		token = deltaToken
	}
	p.gotTokens = append(p.gotTokens, token)
	if resp, ok := p.pages[token]; ok {
		return resp, nil
	}
	return &dto.SyncUpdatedResponse{}, nil
}

func (p *fakeProvider) SendEmail(ctx context.Context, accessToken string, email dto.OutgoingEmail) (*dto.SendEmailResponse, error) {
	return &dto.SendEmailResponse{}, nil
}

func (p *fakeProvider) GetAttachmentContent(ctx context.Context, accessToken, messageID, attachmentID string) (string, error) {
	return "", nil
}

type spyReconciler struct {
	mu      sync.Mutex
	batches [][]dto.EmailMessage
}

func (s *spyReconciler) ReconcileBatch(ctx context.Context, accountID string, records []dto.EmailMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
}

func (s *spyReconciler) Reconcile(ctx context.Context, accountID string, record dto.EmailMessage) error {
	return nil
}

func (s *spyReconciler) RecordOutgoingEmail(ctx context.Context, accountID string, email dto.OutgoingEmail, providerResp *dto.SendEmailResponse) (*models.Email, error) {
	return nil, nil
}

func (s *spyReconciler) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type spySearch struct {
	mu       sync.Mutex
	inserted []interfaces.SearchDocument
}

func (s *spySearch) Initialize(ctx context.Context, accountID string) error { return nil }

func (s *spySearch) Insert(ctx context.Context, accountID string, doc interfaces.SearchDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, doc)
	return nil
}

func (s *spySearch) Search(ctx context.Context, accountID, term string, limit int) ([]interfaces.SearchHit, error) {
	return nil, nil
}

func (s *spySearch) VectorSearch(ctx context.Context, accountID, term string, limit int) ([]interfaces.SearchHit, error) {
	return nil, nil
}

type spyPublisher struct {
	mu        sync.Mutex
	completed []dto.SyncCompleted
}

func (p *spyPublisher) PublishEmailReconciled(ctx context.Context, event dto.EmailReconciled) error {
	return nil
}

func (p *spyPublisher) PublishSyncCompleted(ctx context.Context, event dto.SyncCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, event)
	return nil
}

func (p *spyPublisher) Close() error { return nil }

func record(id string) dto.EmailMessage {
	return dto.EmailMessage{
		ID:                id,
		ThreadID:          "thread_1",
		InternetMessageID: "<" + id + "@x>",
		From:              dto.EmailAddress{Address: "bob@example.com"},
		To:                []dto.EmailAddress{{Address: "alice@example.com"}},
		SentAt:            time.Now().UTC(),
		SysLabels:         []string{"inbox"},
		Body:              "<p>hello</p>",
	}
}

type syncFixture struct {
	accounts   *fakeAccountRepo
	provider   *fakeProvider
	reconciler *spyReconciler
	search     *spySearch
	publisher  *spyPublisher
	throttle   *ThrottleGuard
	service    interfaces.SyncService
}

func newSyncFixture(account *models.Account, provider *fakeProvider) *syncFixture {
	f := &syncFixture{
		accounts:   newFakeAccountRepo(account),
		provider:   provider,
		reconciler: &spyReconciler{},
		search:     &spySearch{},
		publisher:  &spyPublisher{},
		throttle:   NewThrottleGuard(time.Hour),
	}
	f.service = NewSyncService(f.accounts, f.provider, f.reconciler, f.search, f.publisher, f.throttle, getLogger(), 0)
	return f
}

func account(id string, deltaToken string) *models.Account {
	a := &models.Account{ID: id, UserID: "user_1", EmailAddress: "bob@example.com", AccessToken: "token"}
	if deltaToken != "" {
		a.NextDeltaToken = &deltaToken
	}
	return a
}

func TestInitialSync_AccountNotFound(t *testing.T) {
	f := newSyncFixture(account("acct_1", ""), &fakeProvider{})

	err := f.service.InitialSync(context.Background(), "missing")
	assert.ErrorIs(t, err, er.ErrAccountNotFound)
}

func TestInitialSync_MissingAccessToken(t *testing.T) {
	a := account("acct_1", "")
	a.AccessToken = ""
	f := newSyncFixture(a, &fakeProvider{})

	err := f.service.InitialSync(context.Background(), "acct_1")
	assert.ErrorIs(t, err, er.ErrMissingAccessToken)
}

func TestInitialSync_DrainsPagesAndSavesFinalDeltaToken(t *testing.T) {
	provider := &fakeProvider{
		syncResps: []*dto.SyncResponse{{Ready: true, SyncUpdatedToken: "delta_0"}},
		pages: map[string]*dto.SyncUpdatedResponse{
			"delta_0": {Records: []dto.EmailMessage{record("m1"), record("m2")}, NextPageToken: "page_2"},
			"page_2":  {Records: []dto.EmailMessage{record("m3")}, NextPageToken: "page_3"},
			"page_3":  {Records: []dto.EmailMessage{record("m4")}, NextDeltaToken: "delta_final"},
		},
	}
	f := newSyncFixture(account("acct_1", ""), provider)

	err := f.service.InitialSync(context.Background(), "acct_1")
	require.NoError(t, err)

	assert.Equal(t, 4, f.reconciler.recordCount())
	assert.Len(t, f.search.inserted, 4)

	// The final page's delta token is the one persisted
	require.Len(t, f.accounts.savedTokens, 1)
	assert.Equal(t, "delta_final", f.accounts.savedTokens[0])

	require.Len(t, f.publisher.completed, 1)
	assert.Equal(t, "initial", f.publisher.completed[0].Mode)
	assert.Equal(t, 4, f.publisher.completed[0].RecordCount)
}

func TestInitialSync_MostRecentNonEmptyDeltaTokenWins(t *testing.T) {
	provider := &fakeProvider{
		syncResps: []*dto.SyncResponse{{Ready: true, SyncUpdatedToken: "delta_0"}},
		pages: map[string]*dto.SyncUpdatedResponse{
			"delta_0": {Records: []dto.EmailMessage{record("m1")}, NextDeltaToken: "delta_1", NextPageToken: "page_2"},
			"page_2":  {Records: []dto.EmailMessage{record("m2")}, NextPageToken: "page_3"},
			"page_3":  {Records: []dto.EmailMessage{record("m3")}, NextDeltaToken: "delta_3"},
		},
	}
	f := newSyncFixture(account("acct_1", ""), provider)

	require.NoError(t, f.service.InitialSync(context.Background(), "acct_1"))

	require.Len(t, f.accounts.savedTokens, 1)
	assert.Equal(t, "delta_3", f.accounts.savedTokens[0])
}

func TestIncrementalSync_RequiresDeltaToken(t *testing.T) {
	f := newSyncFixture(account("acct_1", ""), &fakeProvider{})

	err := f.service.IncrementalSync(context.Background(), "acct_1")
	assert.ErrorIs(t, err, er.ErrMissingDeltaToken)
}

func TestIncrementalSync_ZeroRecordsIsNoOp(t *testing.T) {
	provider := &fakeProvider{
		pages: map[string]*dto.SyncUpdatedResponse{
			"delta_0": {NextDeltaToken: "delta_1"},
		},
	}
	f := newSyncFixture(account("acct_1", "delta_0"), provider)

	require.NoError(t, f.service.IncrementalSync(context.Background(), "acct_1"))

	assert.Equal(t, 0, f.reconciler.recordCount())
	assert.Empty(t, f.search.inserted)

	// Cursor still advances
	require.Len(t, f.accounts.savedTokens, 1)
	assert.Equal(t, "delta_1", f.accounts.savedTokens[0])
}

func TestIncrementalSync_StartsFromStoredToken(t *testing.T) {
	provider := &fakeProvider{
		pages: map[string]*dto.SyncUpdatedResponse{
			"delta_42": {Records: []dto.EmailMessage{record("m1")}, NextDeltaToken: "delta_43"},
		},
	}
	f := newSyncFixture(account("acct_1", "delta_42"), provider)

	require.NoError(t, f.service.IncrementalSync(context.Background(), "acct_1"))

	require.NotEmpty(t, provider.gotTokens)
	assert.Equal(t, "delta_42", provider.gotTokens[0])
	assert.Equal(t, 1, f.reconciler.recordCount())
}

func TestTriggerIncrementalSync_DeduplicatesBursts(t *testing.T) {
	provider := &fakeProvider{
		pages: map[string]*dto.SyncUpdatedResponse{
			"delta_0": {NextDeltaToken: "delta_1"},
		},
	}
	f := newSyncFixture(account("acct_1", "delta_0"), provider)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.service.TriggerIncrementalSync(ctx, "acct_1")
	}

	// Wait for the single background cycle to finish
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		provider.mu.Lock()
		calls := provider.updateCalls
		provider.mu.Unlock()
		if calls > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, 1, provider.updateCalls)
}

func TestSyncService_PageCeiling(t *testing.T) {
	// Every page points at itself, simulating a stream that never ends
	provider := &fakeProvider{
		pages: map[string]*dto.SyncUpdatedResponse{
			"delta_0": {Records: []dto.EmailMessage{record("m1")}, NextPageToken: "loop"},
			"loop":    {Records: []dto.EmailMessage{record("m2")}, NextPageToken: "loop"},
		},
	}
	f := newSyncFixture(account("acct_1", "delta_0"), provider)
	f.service = NewSyncService(f.accounts, f.provider, f.reconciler, f.search, f.publisher, f.throttle, getLogger(), 10)

	require.NoError(t, f.service.IncrementalSync(context.Background(), "acct_1"))

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, 10, provider.updateCalls)
}
