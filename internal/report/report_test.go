package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/feedsync/feedsync/internal/feed"
)

func TestZapReporterSuccess(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewZapReporter(zap.New(core))

	ref := feed.ItemRef{Timestamp: 300}
	h := r.Start(Event{
		Kind:  KindCopyItem,
		User:  feed.UserRef{ID: "user-1", DisplayName: "Alice"},
		Relay: "relay-b",
		Ref:   &ref,
	})
	h.BytesCopied(512)
	h.Success()

	entries := logs.All()
	require.Len(t, entries, 2)

	start := entries[0]
	assert.Equal(t, zapcore.DebugLevel, start.Level)
	assert.Equal(t, "started", start.Message)

	done := entries[1]
	assert.Equal(t, zapcore.InfoLevel, done.Level)
	assert.Equal(t, "completed", done.Message)

	fields := done.ContextMap()
	assert.Equal(t, "copy_item", fields["op"])
	assert.Equal(t, "Alice", fields["user"])
	assert.Equal(t, "relay-b", fields["relay"])
	assert.Equal(t, int64(512), fields["bytes"])
}

func TestZapReporterError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewZapReporter(zap.New(core))

	h := r.Start(Event{Kind: KindSyncFeed, User: feed.UserRef{ID: "user-2"}})
	h.Error("relay unreachable")

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "relay unreachable", entries[0].Message)
	assert.Equal(t, "sync_feed", entries[0].ContextMap()["op"])
}

func TestZapReporterOmitsEmptyFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewZapReporter(zap.New(core))

	h := r.Start(Event{Kind: KindSyncProfile, User: feed.UserRef{ID: "user-3"}})
	h.Success()

	done := logs.FilterMessage("completed").All()
	require.Len(t, done, 1)

	fields := done[0].ContextMap()
	assert.NotContains(t, fields, "relay")
	assert.NotContains(t, fields, "ref")
	assert.NotContains(t, fields, "bytes")
}

func TestNoopReporterAcceptsEverything(t *testing.T) {
	var r Reporter = Noop{}
	h := r.Start(Event{Kind: KindCopyItem})
	h.BytesCopied(1)
	h.Warning("ignored")
	h.Success()
}
