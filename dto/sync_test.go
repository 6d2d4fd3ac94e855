package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validMessage() EmailMessage {
	return EmailMessage{
		ID:                "m1",
		ThreadID:          "thread_1",
		InternetMessageID: "<m1@x>",
		From:              EmailAddress{Address: "bob@example.com"},
		SentAt:            time.Now(),
	}
}

func TestEmailMessageValidate(t *testing.T) {
	m := validMessage()
	assert.NoError(t, m.Validate())

	m = validMessage()
	m.ThreadID = ""
	assert.Error(t, m.Validate())

	m = validMessage()
	m.ID = ""
	m.InternetMessageID = ""
	assert.Error(t, m.Validate())

	// Either id is sufficient
	m = validMessage()
	m.InternetMessageID = ""
	assert.NoError(t, m.Validate())

	m = validMessage()
	m.From.Address = ""
	assert.Error(t, m.Validate())

	m = validMessage()
	m.SentAt = time.Time{}
	assert.Error(t, m.Validate())
}
