package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
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

type memAttachmentRepo struct {
	mu          sync.Mutex
	attachments map[string]*models.EmailAttachment
	byThread    map[string][]string
}

func newMemAttachmentRepo(attachments ...*models.EmailAttachment) *memAttachmentRepo {
	r := &memAttachmentRepo{
		attachments: map[string]*models.EmailAttachment{},
		byThread:    map[string][]string{},
	}
	for _, a := range attachments {
		clone := *a
		r.attachments[a.ID] = &clone
	}
	return r
}

func (r *memAttachmentRepo) Create(ctx context.Context, attachment *models.EmailAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *attachment
	r.attachments[attachment.ID] = &clone
	return nil
}

func (r *memAttachmentRepo) Update(ctx context.Context, attachment *models.EmailAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *attachment
	r.attachments[attachment.ID] = &clone
	return nil
}

func (r *memAttachmentRepo) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attachments[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, nil
}

func (r *memAttachmentRepo) FindByNaturalKey(ctx context.Context, emailID, name, mimeType string, size int, inline bool, contentID string) (*models.EmailAttachment, error) {
	return nil, nil
}

func (r *memAttachmentRepo) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	return nil, nil
}

func (r *memAttachmentRepo) ListDocumentsByThread(ctx context.Context, threadID string, limit int) ([]*models.EmailAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.EmailAttachment
	for _, id := range r.byThread[threadID] {
		if a, ok := r.attachments[id]; ok {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

type memEmailRepo struct {
	emails map[string]*models.Email
}

func (r *memEmailRepo) Create(ctx context.Context, email *models.Email) error { return nil }
func (r *memEmailRepo) Update(ctx context.Context, email *models.Email) error { return nil }
func (r *memEmailRepo) GetByID(ctx context.Context, id string) (*models.Email, error) {
	if e, ok := r.emails[id]; ok {
		return e, nil
	}
	return nil, nil
}

func (r *memEmailRepo) GetByMessageID(ctx context.Context, accountID, internetMessageID string) (*models.Email, error) {
	return nil, nil
}

func (r *memEmailRepo) FindLocalByCorrelation(ctx context.Context, accountID, fingerprint string) (*models.Email, error) {
	return nil, nil
}

func (r *memEmailRepo) ListByThread(ctx context.Context, threadID string) ([]*models.Email, error) {
	return nil, nil
}

type memAccountRepo struct {
	accounts map[string]*models.Account
}

func (r *memAccountRepo) Create(ctx context.Context, account *models.Account) error { return nil }
func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, nil
}
func (r *memAccountRepo) GetAll(ctx context.Context) ([]*models.Account, error) { return nil, nil }
func (r *memAccountRepo) SaveDeltaToken(ctx context.Context, accountID, deltaToken string) error {
	return nil
}
func (r *memAccountRepo) SaveSearchIndex(ctx context.Context, accountID string, blob []byte) error {
	return nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.objects[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("object %s not found", key)
}

func (s *memStorage) Delete(ctx context.Context, key string) error { return nil }

type stubProvider struct {
	mu      sync.Mutex
	content string
	err     error
	fetches int
}

func (p *stubProvider) StartSync(ctx context.Context, accessToken string) (*dto.SyncResponse, error) {
	return nil, nil
}

func (p *stubProvider) GetUpdated(ctx context.Context, accessToken, deltaToken, pageToken string) (*dto.SyncUpdatedResponse, error) {
	return nil, nil
}

func (p *stubProvider) SendEmail(ctx context.Context, accessToken string, email dto.OutgoingEmail) (*dto.SendEmailResponse, error) {
	return nil, nil
}

func (p *stubProvider) GetAttachmentContent(ctx context.Context, accessToken, messageID, attachmentID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.err != nil {
		return "", p.err
	}
	return p.content, nil
}

type stubAI struct{}

func (a *stubAI) SummarizeDocument(ctx context.Context, text string) (string, error) {
	return "- summary bullet", nil
}

// countingParser records extraction calls and returns canned text
type countingParser struct {
	mu       sync.Mutex
	pdfCalls int
	text     string
	preview  string
}

func (p *countingParser) ExtractPDF(data []byte) (string, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pdfCalls++
	return p.text, 3, nil
}

func (p *countingParser) ExtractDOCX(data []byte) (string, string, error) {
	return p.text, p.preview, nil
}

func (p *countingParser) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pdfCalls
}

func pdfAttachment(id string) *models.EmailAttachment {
	return &models.EmailAttachment{
		ID:       id,
		EmailID:  "email_1",
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Content:  base64.StdEncoding.EncodeToString([]byte("%PDF-fake")),
	}
}

func newService(repo *memAttachmentRepo, parser interfaces.DocumentParser, provider interfaces.ProviderClient, storage interfaces.StorageService) interfaces.AttachmentService {
	return NewAttachmentService(
		repo,
		&memEmailRepo{emails: map[string]*models.Email{
			"email_1": {ID: "email_1", AccountID: "acct_1", InternetMessageID: "<m1@x>"},
		}},
		&memAccountRepo{accounts: map[string]*models.Account{
			"acct_1": {ID: "acct_1", AccessToken: "token"},
		}},
		provider,
		storage,
		&stubAI{},
		parser,
		getLogger(),
	)
}

func TestEnsureProcessed_ExtractsAndStores(t *testing.T) {
	repo := newMemAttachmentRepo(pdfAttachment("file_1"))
	parser := &countingParser{text: "extracted text"}
	svc := newService(repo, parser, &stubProvider{}, newMemStorage())

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)

	assert.Equal(t, "extracted text", result.ExtractedText)
	assert.Equal(t, "- summary bullet", result.Summary)
	assert.NotEmpty(t, result.ContentHash)
	require.NotNil(t, result.PagesCount)
	assert.Equal(t, 3, *result.PagesCount)
	assert.Equal(t, 1, parser.calls())
}

func TestEnsureProcessed_MemoizedByContentHash(t *testing.T) {
	repo := newMemAttachmentRepo(pdfAttachment("file_1"))
	parser := &countingParser{text: "extracted text"}
	svc := newService(repo, parser, &stubProvider{}, newMemStorage())
	ctx := context.Background()

	_, err := svc.EnsureProcessed(ctx, "file_1")
	require.NoError(t, err)
	_, err = svc.EnsureProcessed(ctx, "file_1")
	require.NoError(t, err)

	// Second call hits the processed memo, no re-extraction
	assert.Equal(t, 1, parser.calls())
}

func TestEnsureProcessed_ProcessedRowSkipsByteResolution(t *testing.T) {
	attachment := pdfAttachment("file_1")
	attachment.Content = ""
	attachment.ExtractedText = "already extracted"
	attachment.Summary = "- already summarized"
	repo := newMemAttachmentRepo(attachment)

	provider := &stubProvider{}
	parser := &countingParser{text: "should not run"}
	svc := newService(repo, parser, provider, newMemStorage())

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)

	// No re-download, no re-parse
	assert.Equal(t, "already extracted", result.ExtractedText)
	assert.Equal(t, 0, provider.fetches)
	assert.Equal(t, 0, parser.calls())
}

func TestEnsureProcessed_PayloadUnavailableIsNoOp(t *testing.T) {
	attachment := pdfAttachment("file_1")
	attachment.Content = ""
	repo := newMemAttachmentRepo(attachment)

	provider := &stubProvider{err: fmt.Errorf("provider unavailable")}
	parser := &countingParser{text: "should not run"}
	svc := newService(repo, parser, provider, newMemStorage())

	// Bytes are nowhere to be found; the row comes back unchanged and a
	// later pass retries
	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)

	assert.Empty(t, result.ExtractedText)
	assert.Empty(t, result.ContentHash)
	assert.Equal(t, 0, parser.calls())
}

func TestEnsureProcessed_PersistsDocxHTMLPreview(t *testing.T) {
	attachment := &models.EmailAttachment{
		ID:       "file_1",
		EmailID:  "email_1",
		Name:     "invoice.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Content:  base64.StdEncoding.EncodeToString([]byte("PK-fake")),
	}
	repo := newMemAttachmentRepo(attachment)
	parser := &countingParser{text: "Invoice 2041", preview: "<p>Invoice 2041</p>"}
	svc := newService(repo, parser, &stubProvider{}, newMemStorage())

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)

	require.NotNil(t, result.DocMeta)
	assert.Equal(t, "<p>Invoice 2041</p>", result.DocMeta["htmlPreview"])
}

func TestEnsureProcessed_UnsupportedTypeIsNoOp(t *testing.T) {
	attachment := &models.EmailAttachment{
		ID:       "file_1",
		EmailID:  "email_1",
		Name:     "photo.png",
		MimeType: "image/png",
	}
	repo := newMemAttachmentRepo(attachment)
	parser := &countingParser{text: "should not run"}
	svc := newService(repo, parser, &stubProvider{}, newMemStorage())

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)

	assert.Empty(t, result.ExtractedText)
	assert.Equal(t, 0, parser.calls())
}

func TestEnsureProcessed_NotFound(t *testing.T) {
	svc := newService(newMemAttachmentRepo(), &countingParser{}, &stubProvider{}, newMemStorage())

	_, err := svc.EnsureProcessed(context.Background(), "missing")
	assert.Error(t, err)
}

func TestEnsureProcessed_CapsExtractedText(t *testing.T) {
	repo := newMemAttachmentRepo(pdfAttachment("file_1"))
	parser := &countingParser{text: strings.Repeat("a", maxExtractedChars+5000)}
	svc := newService(repo, parser, &stubProvider{}, newMemStorage())

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Len(t, result.ExtractedText, maxExtractedChars)
}

func TestEnsureProcessed_FallsBackToStorage(t *testing.T) {
	attachment := pdfAttachment("file_1")
	attachment.Content = ""
	attachment.StorageKey = "acct_1/email_1/file_1"
	repo := newMemAttachmentRepo(attachment)

	storage := newMemStorage()
	storage.objects["acct_1/email_1/file_1"] = []byte("%PDF-from-storage")

	parser := &countingParser{text: "from storage"}
	provider := &stubProvider{}
	svc := newService(repo, parser, provider, storage)

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Equal(t, "from storage", result.ExtractedText)
	assert.Equal(t, 0, provider.fetches)
}

func TestEnsureProcessed_ProviderFetchCachesToStorage(t *testing.T) {
	attachment := pdfAttachment("file_1")
	attachment.Content = ""
	repo := newMemAttachmentRepo(attachment)

	storage := newMemStorage()
	provider := &stubProvider{content: base64.StdEncoding.EncodeToString([]byte("%PDF-live"))}
	parser := &countingParser{text: "from provider"}
	svc := newService(repo, parser, provider, storage)

	result, err := svc.EnsureProcessed(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Equal(t, "from provider", result.ExtractedText)
	assert.Equal(t, 1, provider.fetches)

	// Payload was cached back and the key persisted
	assert.Equal(t, "acct_1/email_1/file_1", result.StorageKey)
	assert.Equal(t, []byte("%PDF-live"), storage.objects["acct_1/email_1/file_1"])
}

func TestGetInsightsForThread_BoundsSnippet(t *testing.T) {
	attachment := pdfAttachment("file_1")
	repo := newMemAttachmentRepo(attachment)
	repo.byThread["thread_1"] = []string{"file_1"}

	parser := &countingParser{text: strings.Repeat("b", insightSnippetChars*3)}
	svc := newService(repo, parser, &stubProvider{}, newMemStorage())

	insights, err := svc.GetInsightsForThread(context.Background(), "thread_1", 5)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	assert.Len(t, insights[0].Snippet, insightSnippetChars)
	assert.Equal(t, "- summary bullet", insights[0].Summary)
	assert.Equal(t, "report.pdf", insights[0].Name)
}

func TestGetInsightsForThread_SkipsFailedExtractions(t *testing.T) {
	good := pdfAttachment("file_good")
	bad := pdfAttachment("file_bad")
	bad.Content = "!!! not base64 !!!"
	repo := newMemAttachmentRepo(good, bad)
	repo.byThread["thread_1"] = []string{"file_good", "file_bad"}

	parser := &countingParser{text: "fine"}
	provider := &stubProvider{content: "also not base64"}
	svc := newService(repo, parser, provider, newMemStorage())

	insights, err := svc.GetInsightsForThread(context.Background(), "thread_1", 5)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "file_good", insights[0].ID)
}
