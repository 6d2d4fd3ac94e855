package enum

type EmailLabel string

const (
	EmailLabelInbox EmailLabel = "inbox"
	EmailLabelSent  EmailLabel = "sent"
	EmailLabelDraft EmailLabel = "draft"
)

func (e EmailLabel) String() string {
	return string(e)
}

// SysLabelLocal marks an email row created client-side before provider confirmation
const SysLabelLocal = "local"

type EntityType string

const (
	EMAIL  EntityType = "EMAIL"
	THREAD EntityType = "THREAD"
	SYNC   EntityType = "SYNC"
)
