package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dealflow/mailsync/internal/utils"
)

// EmailAttachment represents an attachment to an email, including lazily
// extracted document content
type EmailAttachment struct {
	ID        string `gorm:"column:id;type:varchar(255);primaryKey" json:"id"`
	EmailID   string `gorm:"column:email_id;type:varchar(255);index;not null" json:"emailId"`
	Name      string `gorm:"column:name;type:varchar(500)" json:"name"`
	MimeType  string `gorm:"column:mime_type;type:varchar(255);index" json:"mimeType"`
	Size      int    `gorm:"column:size;default:0" json:"size"`
	Inline    bool   `gorm:"column:inline;default:false" json:"inline"`
	ContentID string `gorm:"column:content_id;type:varchar(255)" json:"contentId"`

	// Payload: inline base64, object storage key, or remote location
	Content         string `gorm:"column:content;type:text" json:"-"`
	StorageKey      string `gorm:"column:storage_key;type:varchar(1000)" json:"-"`
	ContentLocation string `gorm:"column:content_location;type:varchar(2000)" json:"-"`

	// SHA-256 of raw bytes, used to skip redundant re-extraction
	ContentHash string `gorm:"column:content_hash;type:varchar(64);index" json:"contentHash"`

	// Derived fields, populated lazily
	ExtractedText string  `gorm:"column:extracted_text;type:text" json:"extractedText"`
	Summary       string  `gorm:"column:summary;type:text" json:"summary"`
	PagesCount    *int    `gorm:"column:pages_count" json:"pagesCount"`
	DocMeta       JSONMap `gorm:"column:doc_meta;type:jsonb" json:"docMeta"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	e.CreatedAt = utils.Now()
	return nil
}

// IsDocument reports whether the attachment is a PDF or DOCX worth extracting
func (e *EmailAttachment) IsDocument() bool {
	mime := strings.ToLower(e.MimeType)
	name := strings.ToLower(e.Name)
	return strings.Contains(mime, "pdf") ||
		strings.Contains(mime, "officedocument.wordprocessingml.document") ||
		strings.HasSuffix(name, ".pdf") ||
		strings.HasSuffix(name, ".docx")
}

// IsProcessed reports whether extraction already ran to completion
func (e *EmailAttachment) IsProcessed() bool {
	return e.ExtractedText != "" && e.Summary != ""
}
