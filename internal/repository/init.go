package repository

import (
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/models"
)

type Repositories struct {
	AccountRepository         interfaces.AccountRepository
	EmailAddressRepository    interfaces.EmailAddressRepository
	EmailRepository           interfaces.EmailRepository
	EmailThreadRepository     interfaces.EmailThreadRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AccountRepository:         NewAccountRepository(db),
		EmailAddressRepository:    NewEmailAddressRepository(db),
		EmailRepository:           NewEmailRepository(db),
		EmailThreadRepository:     NewEmailThreadRepository(db),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	return db.AutoMigrate(
		&models.Account{},
		&models.EmailAddress{},
		&models.EmailThread{},
		&models.Email{},
		&models.EmailAttachment{},
	)
}
