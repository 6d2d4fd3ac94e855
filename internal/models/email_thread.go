package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/internal/utils"
)

// EmailThread groups emails sharing a provider thread id.
// The three status flags are derived from member emails; see reconcile.
type EmailThread struct {
	ID            string         `gorm:"column:id;type:varchar(255);primaryKey" json:"id"`
	AccountID     string         `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	Subject       string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	InboxStatus   bool           `gorm:"column:inbox_status;default:false;index" json:"inboxStatus"`
	DraftStatus   bool           `gorm:"column:draft_status;default:false;index" json:"draftStatus"`
	SentStatus    bool           `gorm:"column:sent_status;default:false;index" json:"sentStatus"`
	Done          bool           `gorm:"column:done;default:false;index" json:"done"`
	ParticipantIDs pq.StringArray `gorm:"column:participant_ids;type:text[]" json:"participantIds"`
	LastMessageAt *time.Time     `gorm:"column:last_message_at;type:timestamp;index" json:"lastMessageAt"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailThread) TableName() string {
	return "email_threads"
}

func (e *EmailThread) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("thrd", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}
