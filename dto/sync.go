package dto

import (
	"time"

	"github.com/pkg/errors"
)

// SyncResponse is the provider's answer to a "start sync" request
type SyncResponse struct {
	Ready            bool   `json:"ready"`
	SyncUpdatedToken string `json:"syncUpdatedToken"`
	SyncDeletedToken string `json:"syncDeletedToken"`
}

// SyncUpdatedResponse is one page of the provider's change stream
type SyncUpdatedResponse struct {
	Records        []EmailMessage `json:"records"`
	NextPageToken  string         `json:"nextPageToken,omitempty"`
	NextDeltaToken string         `json:"nextDeltaToken,omitempty"`
}

// EmailAddress is a participant as delivered by the provider
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
	Raw     string `json:"raw,omitempty"`
}

// EmailHeader is a single internet header
type EmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EmailAttachment is attachment metadata plus an optional payload reference
type EmailAttachment struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	MimeType        string `json:"mimeType"`
	Size            int    `json:"size"`
	Inline          bool   `json:"inline"`
	ContentID       string `json:"contentId,omitempty"`
	Content         string `json:"content,omitempty"` // base64
	ContentLocation string `json:"contentLocation,omitempty"`
}

// EmailMessage is one provider-delivered email record
type EmailMessage struct {
	ID                 string            `json:"id"`
	ThreadID           string            `json:"threadId"`
	InternetMessageID  string            `json:"internetMessageId"`
	Subject            string            `json:"subject"`
	SentAt             time.Time         `json:"sentAt"`
	ReceivedAt         time.Time         `json:"receivedAt"`
	CreatedTime        time.Time         `json:"createdTime"`
	LastModifiedTime   time.Time         `json:"lastModifiedTime"`
	SysLabels          []string          `json:"sysLabels"`
	Keywords           []string          `json:"keywords"`
	SysClassifications []string          `json:"sysClassifications"`
	Sensitivity        string            `json:"sensitivity"`
	From               EmailAddress      `json:"from"`
	To                 []EmailAddress    `json:"to"`
	Cc                 []EmailAddress    `json:"cc"`
	Bcc                []EmailAddress    `json:"bcc"`
	ReplyTo            []EmailAddress    `json:"replyTo"`
	HasAttachments     bool              `json:"hasAttachments"`
	Body               string            `json:"body,omitempty"`
	BodySnippet        string            `json:"bodySnippet,omitempty"`
	Attachments        []EmailAttachment `json:"attachments"`
	InReplyTo          string            `json:"inReplyTo,omitempty"`
	References         string            `json:"references,omitempty"`
	ThreadIndex        string            `json:"threadIndex,omitempty"`
	InternetHeaders    []EmailHeader     `json:"internetHeaders"`
	NativeProperties   map[string]string `json:"nativeProperties"`
	FolderID           string            `json:"folderId,omitempty"`
	Omitted            []string          `json:"omitted"`
}

// Validate rejects records the pipeline cannot ingest. Validation happens at
// the sync boundary so malformed records are quarantined per-record instead of
// failing deep inside reconciliation.
func (m *EmailMessage) Validate() error {
	if m.ThreadID == "" {
		return errors.New("record has no threadId")
	}
	if m.InternetMessageID == "" && m.ID == "" {
		return errors.New("record has neither internetMessageId nor id")
	}
	if m.From.Address == "" {
		return errors.New("record has no from address")
	}
	if m.SentAt.IsZero() {
		return errors.New("record has no sentAt")
	}
	return nil
}

// OutgoingEmail is the payload for a provider send
type OutgoingEmail struct {
	From        EmailAddress        `json:"from"`
	To          []EmailAddress      `json:"to"`
	Cc          []EmailAddress      `json:"cc,omitempty"`
	Bcc         []EmailAddress      `json:"bcc,omitempty"`
	ReplyTo     []EmailAddress      `json:"replyTo,omitempty"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"` // HTML
	InReplyTo   string              `json:"inReplyTo,omitempty"`
	References  string              `json:"references,omitempty"`
	ThreadID    string              `json:"threadId,omitempty"`
	Attachments []OutgoingAttachment `json:"attachments,omitempty"`
}

// OutgoingAttachment is an attachment on an outgoing send
type OutgoingAttachment struct {
	Name      string `json:"name"`
	MimeType  string `json:"mimeType,omitempty"`
	Inline    bool   `json:"inline,omitempty"`
	ContentID string `json:"contentId,omitempty"`
	Content   string `json:"content"` // base64
}

// SendEmailResponse is what the provider returns for a send
type SendEmailResponse struct {
	ID                string `json:"id,omitempty"`
	InternetMessageID string `json:"internetMessageId,omitempty"`
	MessageID         string `json:"messageId,omitempty"`
	ThreadID          string `json:"threadId,omitempty"`
}
