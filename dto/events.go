package dto

// EmailReconciled is published after an email row is created or merged
type EmailReconciled struct {
	AccountID string `json:"accountId"`
	EmailID   string `json:"emailId"`
	ThreadID  string `json:"threadId"`
	Label     string `json:"label"`
	Created   bool   `json:"created"`
}

// SyncCompleted is published after a sync cycle finishes
type SyncCompleted struct {
	AccountID   string `json:"accountId"`
	Mode        string `json:"mode"` // initial | incremental
	RecordCount int    `json:"recordCount"`
	DeltaToken  string `json:"deltaToken"`
}
