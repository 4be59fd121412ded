package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/report"
)

// peeked is one cursor's head at the start of a merge iteration. ok is
// false when that cursor is exhausted.
type peeked struct {
	ref feed.ItemRef
	ok  bool
}

// selectTip returns the newest ref among the peeked heads and the indexes
// of every cursor positioned at it. Refs order by timestamp with signature
// bytes breaking ties, so two distinct items sharing a millisecond resolve
// over two iterations, greater signature first. matches is nil when every
// cursor is exhausted.
func selectTip(heads []peeked) (feed.ItemRef, []int) {
	var (
		tip   feed.ItemRef
		found bool
	)
	for _, h := range heads {
		if !h.ok {
			continue
		}
		if !found || h.ref.Compare(tip) > 0 {
			tip = h.ref
			found = true
		}
	}
	if !found {
		return feed.ItemRef{}, nil
	}

	var matches []int
	for i, h := range heads {
		if h.ok && h.ref.Compare(tip) == 0 {
			matches = append(matches, i)
		}
	}
	return tip, matches
}

// SyncUserItems runs the merge loop for one user: repeatedly select the
// newest unreconciled ref across all relays, copy it to destinations that
// lack it, and advance past it. The loop ends at full convergence or when
// the mode's cap is reached.
func (s *Syncer) SyncUserItems(ctx context.Context, user feed.UserRef, mode feed.SyncMode) (ItemStats, error) {
	h := s.reporter.Start(report.Event{Kind: report.KindSyncUserItems, User: user})

	cursors := make([]*cursor, len(s.relays))
	for i, r := range s.relays {
		cursors[i] = newCursor(r.Client, user.ID, s.pageSize)
	}

	var stats ItemStats
	heads := make([]peeked, len(cursors))

	for mode.Continues(stats.Reconciled) {
		for i, c := range cursors {
			ref, ok, err := c.peek(ctx)
			if err != nil {
				msg := fmt.Sprintf("listing refs on %s: %v", s.relays[i].Name, err)
				h.Error(msg)
				return stats, fmt.Errorf("syncing %s: %s", user.Label(), msg)
			}
			heads[i] = peeked{ref: ref, ok: ok}
		}

		tip, matches := selectTip(heads)
		if len(matches) == 0 {
			break // every relay exhausted, converged
		}

		copied, bytes, errs := s.copyItem(ctx, user, tip, matches)
		stats.Copied += copied
		stats.Bytes += bytes
		stats.Errors = append(stats.Errors, errs...)

		for _, i := range matches {
			cursors[i].advance()
		}
		stats.Reconciled++
	}

	s.logger.Debug("user items reconciled",
		zap.String("user", user.Label()),
		zap.Int("reconciled", stats.Reconciled),
		zap.Int("copied", stats.Copied),
	)
	h.Success()
	return stats, nil
}
