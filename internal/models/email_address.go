package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/dealflow/mailsync/internal/utils"
)

// EmailAddress is a participant, scoped uniquely by (account, address)
type EmailAddress struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_account_address;not null" json:"accountId"`
	Address   string `gorm:"column:address;type:varchar(255);uniqueIndex:idx_account_address;not null" json:"address"`
	Name      string `gorm:"column:name;type:varchar(255)" json:"name"`
	Raw       string `gorm:"column:raw;type:varchar(500)" json:"raw"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailAddress) TableName() string {
	return "email_addresses"
}

func (e *EmailAddress) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("addr", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}
