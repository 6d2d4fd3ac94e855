package interfaces

import (
	"context"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/internal/models"
)

type AIService interface {
	// SummarizeDocument produces a short bullet summary of document text
	SummarizeDocument(ctx context.Context, text string) (string, error)
}

type EmbeddingService interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SearchDocument is one indexed email
type SearchDocument struct {
	EmailID   string    `json:"emailId"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	RawBody   string    `json:"rawBody"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	SentAt    string    `json:"sentAt"`
	ThreadID  string    `json:"threadId"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// SearchHit is one scored result
type SearchHit struct {
	Document SearchDocument `json:"document"`
	Score    float64        `json:"score"`
}

type SearchService interface {
	Initialize(ctx context.Context, accountID string) error
	Insert(ctx context.Context, accountID string, doc SearchDocument) error
	Search(ctx context.Context, accountID, term string, limit int) ([]SearchHit, error)
	VectorSearch(ctx context.Context, accountID, term string, limit int) ([]SearchHit, error)
}

// AttachmentInsight is a bounded view of an extracted document for prompt use
type AttachmentInsight struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Summary  string `json:"summary"`
	Snippet  string `json:"snippet"`
}

type AttachmentService interface {
	// EnsureProcessed lazily extracts text/summary for one attachment;
	// idempotent and memoized by content hash
	EnsureProcessed(ctx context.Context, attachmentID string) (*models.EmailAttachment, error)
	GetInsightsForThread(ctx context.Context, threadID string, limit int) ([]AttachmentInsight, error)
}

// DocumentParser extracts text from document payloads. Split out so extraction
// backends are swappable and call counts are observable in tests.
type DocumentParser interface {
	ExtractPDF(data []byte) (text string, pages int, err error)
	ExtractDOCX(data []byte) (text string, htmlPreview string, err error)
}

type ReconcileService interface {
	// ReconcileBatch ingests provider records one by one; a failing record is
	// logged and skipped, never aborts the batch
	ReconcileBatch(ctx context.Context, accountID string, records []dto.EmailMessage)
	Reconcile(ctx context.Context, accountID string, record dto.EmailMessage) error
	// RecordOutgoingEmail persists the optimistic "local" row for an email the
	// client just sent through the provider
	RecordOutgoingEmail(ctx context.Context, accountID string, email dto.OutgoingEmail, providerResp *dto.SendEmailResponse) (*models.Email, error)
}

type SyncService interface {
	InitialSync(ctx context.Context, accountID string) error
	IncrementalSync(ctx context.Context, accountID string) error
	// TriggerIncrementalSync applies the throttle guard: calls inside the
	// minimum interval or while a sync for the account is in flight are
	// silently dropped
	TriggerIncrementalSync(ctx context.Context, accountID string)
}

type EventPublisher interface {
	PublishEmailReconciled(ctx context.Context, event dto.EmailReconciled) error
	PublishSyncCompleted(ctx context.Context, event dto.SyncCompleted) error
	Close() error
}

// StorageService stores raw attachment payloads outside the database
type StorageService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
