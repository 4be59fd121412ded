package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
)

type fixture struct {
	Users map[string]fixtureUser `json:"users"`
}

type fixtureUser struct {
	Items []fixtureItem `json:"items"`
}

type fixtureItem struct {
	TS   int64  `json:"ts"`
	Sig  string `json:"sig"`
	Data []byte `json:"data"`
}

// LoadFixture seeds the store from a JSON fixture file. Fixtures are
// developer-authored, so malformed entries fail the load instead of being
// skipped.
func (s *Store) LoadFixture(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}

	var fix fixture
	if err := json.Unmarshal(raw, &fix); err != nil {
		return fmt.Errorf("decoding fixture: %w", err)
	}

	users := make([]string, 0, len(fix.Users))
	for u := range fix.Users {
		users = append(users, u)
	}
	sort.Strings(users)

	for _, u := range users {
		for i, item := range fix.Users[u].Items {
			sig, err := feed.ParseSignature(item.Sig)
			if err != nil {
				return fmt.Errorf("user %s item %d: %w", u, i, err)
			}
			s.PutItem(feed.UserID(u), feed.ItemRef{Timestamp: item.TS, Sig: sig}, item.Data)
		}
		s.logger.Info("loaded fixture user",
			zap.String("user", u),
			zap.Int("items", len(fix.Users[u].Items)),
		)
	}
	return nil
}
