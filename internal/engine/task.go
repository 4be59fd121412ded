package engine

import (
	"fmt"

	"github.com/feedsync/feedsync/internal/feed"
)

// Task is one user's unit of sync work. Follows marks tasks whose profile
// follow list should expand into further tasks; Resolved marks tasks whose
// profile was already reconciled during discovery.
type Task struct {
	User     feed.UserRef
	Mode     feed.SyncMode
	Follows  bool
	Resolved bool
}

func (t Task) String() string {
	return fmt.Sprintf("%s [%s]", t.User.Label(), t.Mode)
}
