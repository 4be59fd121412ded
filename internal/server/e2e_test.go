package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/feedsync/feedsync/internal/engine"
	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/relay"
	"github.com/feedsync/feedsync/internal/report"
	"github.com/feedsync/feedsync/internal/store"
)

// TestReplicationOverHTTP drives the full pipeline against three live relay
// instances: profile resolution, follow expansion, and item sync, all over
// the wire protocol rather than in-process fakes.
func TestReplicationOverHTTP(t *testing.T) {
	logger := zaptest.NewLogger(t)

	storeA, urlA := newTestRelay(t, "")
	storeB, urlB := newTestRelay(t, "")
	storeC, urlC := newTestRelay(t, "")

	aliceProfile, err := feed.ProfilePayload(&feed.Profile{
		Name:    "Alice",
		Follows: []feed.Follow{{ID: "bob", Name: "bobby"}},
	})
	require.NoError(t, err)
	bobProfile, err := feed.ProfilePayload(&feed.Profile{Name: "Bob"})
	require.NoError(t, err)

	alicePost2 := []byte("alice post 2")

	// A and B diverge in both directions; C starts empty.
	storeA.PutItem("alice", refAt(100, 0x01), aliceProfile)
	storeA.PutItem("alice", refAt(200, 0x02), []byte("alice post 1"))
	storeA.PutItem("alice", refAt(300, 0x03), alicePost2)
	storeA.PutItem("bob", refAt(150, 0x04), bobProfile)
	storeA.PutItem("bob", refAt(250, 0x05), []byte("bob post"))
	storeB.PutItem("alice", refAt(300, 0x03), alicePost2)
	storeB.PutItem("alice", refAt(400, 0x06), []byte("alice post 3"))

	newClient := func(url string) relay.Client {
		return relay.NewHTTPClient(url, "", 0, 5*time.Second, 10*time.Millisecond, 1, logger)
	}
	relays := []engine.Relay{
		{Name: "a", URL: urlA, Destination: true, Client: newClient(urlA)},
		{Name: "b", URL: urlB, Destination: true, Client: newClient(urlB)},
		{Name: "c", URL: urlC, Destination: true, Client: newClient(urlC)},
	}

	// A small page size forces cursor pagination over HTTP.
	syncer := engine.NewSyncer(relays, 2, report.Noop{}, logger)
	sched := engine.NewScheduler(syncer, 2, report.Noop{}, logger)

	seeds := []engine.Task{{
		User:    feed.UserRef{ID: "alice"},
		Mode:    feed.FullMode(false),
		Follows: true,
	}}

	result, err := sched.Run(context.Background(), seeds)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Tasks)
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)

	// Every relay ends with the union of both histories. Profiles arrive
	// during resolution, posts during item sync.
	for _, st := range []struct {
		store *store.Store
		name  string
	}{
		{storeA, "a"}, {storeB, "b"}, {storeC, "c"},
	} {
		assert.Equal(t, 4, st.store.ItemCount("alice"), "alice on relay %s", st.name)
		assert.Equal(t, 2, st.store.ItemCount("bob"), "bob on relay %s", st.name)

		rec, err := st.store.Profile("alice")
		require.NoError(t, err)
		assert.True(t, rec.Ref.Equal(refAt(100, 0x01)), "alice profile on relay %s", st.name)
	}

	// alice: 400 to a+c, 300 to c, 200 to b+c. bob: 250 to b+c.
	assert.Equal(t, 7, result.ItemsCopied)

	data, err := storeC.GetItem("alice", refAt(300, 0x03).Sig)
	require.NoError(t, err)
	assert.Equal(t, alicePost2, data)

	// A second run finds all relays converged.
	again, err := sched.Run(context.Background(), seeds)
	require.NoError(t, err)
	assert.Zero(t, again.ItemsCopied)
	assert.Empty(t, again.Errors)
}
