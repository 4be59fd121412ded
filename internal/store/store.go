// Package store keeps per-user item logs in memory. It backs the
// development relay and integration tests; production relays are external.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrBadCursor = errors.New("malformed cursor")
)

type userLog struct {
	refs    []feed.ItemRef // descending
	items   map[feed.Signature][]byte
	profile *feed.ItemRef
}

type Store struct {
	mu     sync.RWMutex
	users  map[feed.UserID]*userLog
	logger *zap.Logger
}

func New(logger *zap.Logger) *Store {
	return &Store{
		users:  make(map[feed.UserID]*userLog),
		logger: logger,
	}
}

// PutItem stores one item, keeping the user's log sorted newest first.
// Storing an already-known signature is a no-op; the return value reports
// whether the log grew. Profile envelopes additionally update the user's
// profile pointer when newer than the current one.
func (s *Store) PutItem(user feed.UserID, ref feed.ItemRef, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.users[user]
	if !ok {
		log = &userLog{items: make(map[feed.Signature][]byte)}
		s.users[user] = log
	}

	if _, exists := log.items[ref.Sig]; exists {
		return false
	}

	i := sort.Search(len(log.refs), func(i int) bool {
		return log.refs[i].Compare(ref) < 0
	})
	log.refs = append(log.refs, feed.ItemRef{})
	copy(log.refs[i+1:], log.refs[i:])
	log.refs[i] = ref
	log.items[ref.Sig] = append([]byte(nil), data...)

	if env, err := feed.ParseEnvelope(data); err == nil && env.Kind == feed.EnvelopeKindProfile {
		if log.profile == nil || ref.Compare(*log.profile) > 0 {
			r := ref
			log.profile = &r
		}
	}
	return true
}

// ListRefs returns up to limit refs strictly older than the cursor, newest
// first. An empty cursor starts from the newest ref. The returned cursor is
// empty on the last page.
func (s *Store) ListRefs(user feed.UserID, cursor string, limit int) ([]feed.ItemRef, string, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.users[user]
	if !ok {
		return nil, "", nil
	}

	start := 0
	if after != nil {
		start = sort.Search(len(log.refs), func(i int) bool {
			return log.refs[i].Compare(*after) < 0
		})
	}
	if start >= len(log.refs) {
		return nil, "", nil
	}

	end := start + limit
	if end > len(log.refs) {
		end = len(log.refs)
	}

	page := append([]feed.ItemRef(nil), log.refs[start:end]...)
	next := ""
	if end < len(log.refs) {
		next = encodeCursor(page[len(page)-1])
	}
	return page, next, nil
}

func (s *Store) GetItem(user feed.UserID, sig feed.Signature) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.users[user]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := log.items[sig]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Profile returns the user's newest profile item.
func (s *Store) Profile(user feed.UserID) (*feed.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.users[user]
	if !ok || log.profile == nil {
		return nil, ErrNotFound
	}
	return &feed.ProfileRecord{
		Ref:  *log.profile,
		Data: log.items[log.profile.Sig],
	}, nil
}

// Users lists known user ids in lexical order.
func (s *Store) Users() []feed.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]feed.UserID, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ItemCount returns the size of one user's log.
func (s *Store) ItemCount(user feed.UserID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.users[user]
	if !ok {
		return 0
	}
	return len(log.refs)
}

func encodeCursor(ref feed.ItemRef) string {
	return fmt.Sprintf("%d:%s", ref.Timestamp, ref.Sig)
}

func decodeCursor(cursor string) (*feed.ItemRef, error) {
	if cursor == "" {
		return nil, nil
	}
	tsPart, sigPart, found := strings.Cut(cursor, ":")
	if !found {
		return nil, ErrBadCursor
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return nil, ErrBadCursor
	}
	sig, err := feed.ParseSignature(sigPart)
	if err != nil {
		return nil, ErrBadCursor
	}
	return &feed.ItemRef{Timestamp: ts, Sig: sig}, nil
}
