package engine

import "errors"

// ErrProfileNotFound means no configured relay holds a profile for the user.
// Without a profile the user's identity and follow list cannot be
// established, so their sync fails as a unit.
var ErrProfileNotFound = errors.New("profile not found on any relay")
