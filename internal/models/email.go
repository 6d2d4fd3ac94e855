package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/internal/enum"
	"github.com/dealflow/mailsync/internal/utils"
)

// Email represents one message stored in the database.
// Exactly one row exists per (account, internet_message_id) once reconciled;
// rows created by the send path carry the "local" sys label until the provider
// echo is merged in.
type Email struct {
	ID                string         `gorm:"column:id;type:varchar(255);primaryKey" json:"id"`
	AccountID         string         `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_account_message;not null" json:"accountId"`
	ThreadID          string         `gorm:"column:thread_id;type:varchar(255);index;not null" json:"threadId"`
	InternetMessageID string         `gorm:"column:internet_message_id;type:varchar(255);uniqueIndex:idx_account_message" json:"internetMessageId"`
	Subject           string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Body              string         `gorm:"column:body;type:text" json:"body"`
	BodySnippet       string         `gorm:"column:body_snippet;type:text" json:"bodySnippet"`

	// Time information
	SentAt         time.Time `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`
	ReceivedAt     time.Time `gorm:"column:received_at;type:timestamp;index" json:"receivedAt"`
	CreatedTime    time.Time `gorm:"column:created_time;type:timestamp" json:"createdTime"`
	LastModifiedAt time.Time `gorm:"column:last_modified_at;type:timestamp" json:"lastModifiedAt"`

	// Classification
	EmailLabel         enum.EmailLabel `gorm:"column:email_label;type:varchar(20);index" json:"emailLabel"`
	SysLabels          pq.StringArray  `gorm:"column:sys_labels;type:text[]" json:"sysLabels"`
	Keywords           pq.StringArray  `gorm:"column:keywords;type:text[]" json:"keywords"`
	SysClassifications pq.StringArray  `gorm:"column:sys_classifications;type:text[]" json:"sysClassifications"`
	Sensitivity        string          `gorm:"column:sensitivity;type:varchar(50)" json:"sensitivity"`

	// Participants, by email_addresses id
	FromID     string         `gorm:"column:from_id;type:varchar(50);index" json:"fromId"`
	ToIDs      pq.StringArray `gorm:"column:to_ids;type:text[]" json:"toIds"`
	CcIDs      pq.StringArray `gorm:"column:cc_ids;type:text[]" json:"ccIds"`
	BccIDs     pq.StringArray `gorm:"column:bcc_ids;type:text[]" json:"bccIds"`
	ReplyToIDs pq.StringArray `gorm:"column:reply_to_ids;type:text[]" json:"replyToIds"`

	// Threading headers
	InReplyTo   string `gorm:"column:in_reply_to;type:varchar(255)" json:"inReplyTo"`
	References  string `gorm:"column:references_header;type:text" json:"references"`
	ThreadIndex string `gorm:"column:thread_index;type:varchar(500)" json:"threadIndex"`

	// Raw provider data
	InternetHeaders  JSONArray      `gorm:"column:internet_headers;type:jsonb" json:"internetHeaders"`
	NativeProperties JSONMap        `gorm:"column:native_properties;type:jsonb" json:"nativeProperties"`
	FolderID         string         `gorm:"column:folder_id;type:varchar(255)" json:"folderId"`
	Omitted          pq.StringArray `gorm:"column:omitted;type:text[]" json:"omitted"`

	HasAttachments bool `gorm:"column:has_attachments;default:false" json:"hasAttachments"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}

// CorrelationFingerprint returns the stored client correlation id, if any
func (e *Email) CorrelationFingerprint() string {
	if e.NativeProperties == nil {
		return ""
	}
	if v, ok := e.NativeProperties["clientCorrelationId"].(string); ok {
		return v
	}
	return ""
}

// IsLocal reports whether the row is an optimistic client-side copy awaiting
// provider confirmation
func (e *Email) IsLocal() bool {
	for _, l := range e.SysLabels {
		if l == enum.SysLabelLocal {
			return true
		}
	}
	return false
}
