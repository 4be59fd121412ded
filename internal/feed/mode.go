package feed

import "fmt"

// ModeKind selects how much of a user's history to reconcile.
type ModeKind string

const (
	// ModeLatest reconciles at most Count most-recent items.
	ModeLatest ModeKind = "latest"
	// ModeFull reconciles the entire history.
	ModeFull ModeKind = "full"
)

// DefaultLatestCount bounds a latest-mode sync when no count is configured.
const DefaultLatestCount = 100

// SyncMode controls the merge loop's termination for one user.
type SyncMode struct {
	Kind  ModeKind
	Count int
	// BackfillAttachments marks full syncs that should also re-scan file
	// attachments. The flag is carried through configuration; item
	// reconciliation ignores it.
	BackfillAttachments bool
}

// LatestMode returns a mode syncing the count most-recent items.
func LatestMode(count int) SyncMode {
	return SyncMode{Kind: ModeLatest, Count: count}
}

// FullMode returns a mode syncing the whole history.
func FullMode(backfill bool) SyncMode {
	return SyncMode{Kind: ModeFull, BackfillAttachments: backfill}
}

// Continues reports whether the merge loop may reconcile another item after
// reconciled items have already been handled.
func (m SyncMode) Continues(reconciled int) bool {
	if m.Kind == ModeFull {
		return true
	}
	return reconciled < m.Count
}

func (m SyncMode) String() string {
	if m.Kind == ModeLatest {
		return fmt.Sprintf("latest(%d)", m.Count)
	}
	if m.BackfillAttachments {
		return "full+backfill"
	}
	return "full"
}
