package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/dealflow/mailsync/internal/utils"
)

// Account represents one connected mailbox
type Account struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID       string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);index" json:"emailAddress"`
	Name         string `gorm:"column:name;type:varchar(255)" json:"name"`
	AccessToken  string `gorm:"column:access_token;type:varchar(2000)" json:"-"`

	// Incremental sync cursor; written only as the last step of a successful sync cycle
	NextDeltaToken *string `gorm:"column:next_delta_token;type:varchar(2000)" json:"-"`

	// Serialized hybrid search index; derived cache, rebuildable from emails
	SearchIndex []byte `gorm:"column:search_index;type:bytea" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	a.CreatedAt = utils.Now()
	return nil
}
