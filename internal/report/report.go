// Package report carries sync progress events from the engine to whatever
// wants to observe them. The engine never logs directly about individual
// operations; it starts an event, does the work, and ends the handle.
package report

import (
	"github.com/feedsync/feedsync/internal/feed"
)

// Kind identifies the operation an event describes.
type Kind string

const (
	KindSyncProfile   Kind = "sync_profile"
	KindSyncFeed      Kind = "sync_feed"
	KindSyncUserItems Kind = "sync_user_items"
	KindCopyItem      Kind = "copy_item"
	KindCopyFile      Kind = "copy_file"
)

// Event describes one unit of work as it begins. Relay is set for
// per-destination operations, Ref for item-scoped ones.
type Event struct {
	Kind  Kind
	User  feed.UserRef
	Relay string
	Ref   *feed.ItemRef
}

// Handle receives the outcome of a started event. Exactly one of Success,
// Warning, or Error should end the handle; BytesCopied may be called before
// that to attach a transfer size.
type Handle interface {
	Success()
	Warning(msg string)
	Error(msg string)
	BytesCopied(n int64)
}

// Reporter observes sync progress.
type Reporter interface {
	Start(ev Event) Handle
}

// Noop discards all events.
type Noop struct{}

func (Noop) Start(Event) Handle { return noopHandle{} }

type noopHandle struct{}

func (noopHandle) Success()          {}
func (noopHandle) Warning(string)    {}
func (noopHandle) Error(string)      {}
func (noopHandle) BytesCopied(int64) {}
