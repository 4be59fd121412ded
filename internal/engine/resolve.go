package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/relay"
	"github.com/feedsync/feedsync/internal/report"
)

// ResolveResult carries what profile resolution produced. Follows is only
// populated for tasks with feed expansion enabled.
type ResolveResult struct {
	Follows    []Task
	PushErrors []string
}

// ResolveProfile fetches the task user's profile from every relay, treats
// the newest copy as authoritative, and pushes it to destinations holding
// an older or no copy. When the task has Follows set, the winning profile's
// follow list expands into one task per followed user, inheriting the
// parent's mode.
//
// No profile on any relay fails the user as a whole. Individual relay
// fetch or push failures do not.
func (s *Syncer) ResolveProfile(ctx context.Context, task *Task) (*ResolveResult, error) {
	h := s.reporter.Start(report.Event{Kind: report.KindSyncProfile, User: task.User})

	records := make([]*feed.ProfileRecord, len(s.relays))
	var eg errgroup.Group
	for i, r := range s.relays {
		eg.Go(func() error {
			rec, err := r.Client.GetProfile(ctx, task.User.ID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				if errors.Is(err, relay.ErrNotFound) {
					s.logger.Debug("no profile on relay",
						zap.String("relay", r.Name),
						zap.String("user", task.User.Label()),
					)
				} else {
					s.logger.Warn("fetching profile failed",
						zap.String("relay", r.Name),
						zap.String("user", task.User.Label()),
						zap.Error(err),
					)
				}
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.Error(err.Error())
		return nil, err
	}

	var newest *feed.ProfileRecord
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if newest == nil || rec.Ref.Compare(newest.Ref) > 0 {
			newest = rec
		}
	}
	if newest == nil {
		h.Error(ErrProfileNotFound.Error())
		return nil, fmt.Errorf("resolving %s: %w", task.User.Label(), ErrProfileNotFound)
	}

	profile, parseErr := feed.ParseProfile(newest.Data)
	if parseErr == nil && task.User.DisplayName == "" {
		task.User.DisplayName = profile.Name
	}

	res := &ResolveResult{}

	// Same copy semantics as items: newest wins, stale destinations catch up
	for i, r := range s.relays {
		if !r.Destination {
			continue
		}
		if records[i] != nil && records[i].Ref.Compare(newest.Ref) >= 0 {
			continue
		}

		ph := s.reporter.Start(report.Event{Kind: report.KindCopyItem, User: task.User, Relay: r.Name, Ref: &newest.Ref})
		if err := r.Client.PutItem(ctx, task.User.ID, newest.Ref, newest.Data); err != nil {
			ph.Error(err.Error())
			res.PushErrors = append(res.PushErrors, fmt.Sprintf("%s profile -> %s: %v", task.User.Label(), r.Name, err))
			continue
		}
		ph.BytesCopied(int64(len(newest.Data)))
		ph.Success()
	}

	if task.Follows && parseErr == nil {
		for _, f := range profile.Follows {
			res.Follows = append(res.Follows, Task{
				User: feed.UserRef{ID: f.ID, KnownName: f.Name},
				Mode: task.Mode,
			})
		}
	}

	task.Resolved = true

	if task.Follows && parseErr != nil {
		h.Warning(fmt.Sprintf("profile unreadable, follow list skipped: %v", parseErr))
	} else {
		h.Success()
	}
	return res, nil
}
