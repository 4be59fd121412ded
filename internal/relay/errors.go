package relay

import "errors"

var (
	ErrNotFound    = errors.New("relay has no record for this user/item")
	ErrRateLimited = errors.New("rate limited by relay")
	ErrAuthFailed  = errors.New("relay rejected credentials")
)
