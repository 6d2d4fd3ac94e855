package handlers

import (
	"github.com/dealflow/mailsync/internal/repository"
	"github.com/dealflow/mailsync/services"
)

type APIHandlers struct {
	Accounts    *AccountsHandler
	Messages    *MessagesHandler
	Search      *SearchHandler
	Attachments *AttachmentsHandler
}

func InitHandlers(r *repository.Repositories, s *services.Services) *APIHandlers {
	return &APIHandlers{
		Accounts:    NewAccountsHandler(r, s),
		Messages:    NewMessagesHandler(r, s),
		Search:      NewSearchHandler(s),
		Attachments: NewAttachmentsHandler(s),
	}
}
