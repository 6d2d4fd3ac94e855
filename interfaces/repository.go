package interfaces

import (
	"context"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetAll(ctx context.Context) ([]*models.Account, error)
	// SaveDeltaToken persists the incremental sync cursor; callers invoke it
	// only after all records of the cycle were handed to the reconciler
	SaveDeltaToken(ctx context.Context, accountID, deltaToken string) error
	SaveSearchIndex(ctx context.Context, accountID string, blob []byte) error
}

type EmailAddressRepository interface {
	// Upsert returns the existing row unmodified when (account, address) is
	// already known; name/raw are first-write-wins
	Upsert(ctx context.Context, accountID string, address dto.EmailAddress) (*models.EmailAddress, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.EmailAddress, error)
}

type EmailThreadRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailThread, error)
	Create(ctx context.Context, thread *models.EmailThread) error
	Update(ctx context.Context, thread *models.EmailThread) error
	UpdateStatusFlags(ctx context.Context, threadID string, inbox, draft, sent bool) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.EmailThread, error)
}

type EmailRepository interface {
	Create(ctx context.Context, email *models.Email) error
	Update(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByMessageID(ctx context.Context, accountID, internetMessageID string) (*models.Email, error)
	// FindLocalByCorrelation locates an optimistic client-side row by its
	// correlation fingerprint; only rows still carrying the "local" sys label
	// are candidates
	FindLocalByCorrelation(ctx context.Context, accountID, fingerprint string) (*models.Email, error)
	// ListByThread returns member emails in ascending received_at order
	ListByThread(ctx context.Context, threadID string) ([]*models.Email, error)
}

type EmailAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.EmailAttachment) error
	Update(ctx context.Context, attachment *models.EmailAttachment) error
	GetByID(ctx context.Context, id string) (*models.EmailAttachment, error)
	// FindByNaturalKey is the best-effort match for attachments without stable
	// provider ids: name+mimeType+size+inline+contentId. Approximate by design,
	// never a uniqueness constraint.
	FindByNaturalKey(ctx context.Context, emailID, name, mimeType string, size int, inline bool, contentID string) (*models.EmailAttachment, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
	// ListDocumentsByThread returns PDF/DOCX attachments for a thread,
	// non-inline and larger attachments first
	ListDocumentsByThread(ctx context.Context, threadID string, limit int) ([]*models.EmailAttachment, error)
}
