package interfaces

import (
	"context"

	"github.com/dealflow/mailsync/dto"
)

// ProviderClient talks to the hosted mail-sync API on behalf of one account
// access token
type ProviderClient interface {
	StartSync(ctx context.Context, accessToken string) (*dto.SyncResponse, error)
	// GetUpdated fetches one page of the change stream; exactly one of
	// deltaToken/pageToken is set
	GetUpdated(ctx context.Context, accessToken, deltaToken, pageToken string) (*dto.SyncUpdatedResponse, error)
	SendEmail(ctx context.Context, accessToken string, email dto.OutgoingEmail) (*dto.SendEmailResponse, error)
	// GetAttachmentContent returns the base64 payload of an attachment
	GetAttachmentContent(ctx context.Context, accessToken, messageID, attachmentID string) (string, error)
}
