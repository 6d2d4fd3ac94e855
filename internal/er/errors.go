package er

import "errors"

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrMissingAccessToken = errors.New("account has no access token")
	ErrMissingDeltaToken  = errors.New("account has no delta token; run initial sync first")
	ErrThreadNotFound     = errors.New("thread not found")
)
