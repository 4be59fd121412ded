package engine

import (
	"context"
	"fmt"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/report"
)

// copyItem pushes the tip item to every destination relay that does not
// already have it. matches indexes the relays positioned at the tip; the
// first of them serves as the source. Each destination push is independent:
// one failure is recorded and the rest still run.
func (s *Syncer) copyItem(ctx context.Context, user feed.UserRef, ref feed.ItemRef, matches []int) (copied int, bytes int64, errs []string) {
	has := make(map[int]bool, len(matches))
	for _, i := range matches {
		has[i] = true
	}

	var dests []Relay
	for i, r := range s.relays {
		if r.Destination && !has[i] {
			dests = append(dests, r)
		}
	}
	if len(dests) == 0 {
		return 0, 0, nil
	}

	source := s.relays[matches[0]]
	data, err := source.Client.GetItem(ctx, user.ID, ref.Sig)
	if err != nil {
		// Without the payload every destination copy fails
		for _, dest := range dests {
			h := s.reporter.Start(report.Event{Kind: report.KindCopyItem, User: user, Relay: dest.Name, Ref: &ref})
			h.Error(fmt.Sprintf("fetching from %s: %v", source.Name, err))
			errs = append(errs, fmt.Sprintf("%s %s -> %s: fetching from %s: %v", user.Label(), ref, dest.Name, source.Name, err))
		}
		return 0, 0, errs
	}

	for _, dest := range dests {
		h := s.reporter.Start(report.Event{Kind: report.KindCopyItem, User: user, Relay: dest.Name, Ref: &ref})

		if err := dest.Client.PutItem(ctx, user.ID, ref, data); err != nil {
			h.Error(err.Error())
			errs = append(errs, fmt.Sprintf("%s %s -> %s: %v", user.Label(), ref, dest.Name, err))
			continue
		}

		h.BytesCopied(int64(len(data)))
		h.Success()
		copied++
		bytes += int64(len(data))
	}
	return copied, bytes, errs
}
