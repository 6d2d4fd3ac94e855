package utils

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}

// GenerateNanoIDWithPrefix returns an id like "email_8f3k2..." with the given random length
func GenerateNanoIDWithPrefix(prefix string, length int) string {
	id, _ := gonanoid.Generate(nanoidAlphabet, length)
	return prefix + "_" + id
}
