package engine

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/relay"
	"github.com/feedsync/feedsync/internal/report"
)

func sigOf(b byte) feed.Signature {
	var s feed.Signature
	for i := range s {
		s[i] = b
	}
	return s
}

func refAt(ts int64, b byte) feed.ItemRef {
	return feed.ItemRef{Timestamp: ts, Sig: sigOf(b)}
}

type itemKey struct {
	user feed.UserID
	sig  feed.Signature
}

type putCall struct {
	user feed.UserID
	ref  feed.ItemRef
	data []byte
}

// fakeRelay is an in-memory relay.Client. Puts are recorded and, unless a
// failure is injected, applied, so a second sync pass observes converged
// state.
type fakeRelay struct {
	mu       sync.Mutex
	refs     map[feed.UserID][]feed.ItemRef
	items    map[itemKey][]byte
	profiles map[feed.UserID]*feed.ProfileRecord

	listErr    error
	getErr     error
	putErr     error
	profileErr error

	listCalls int
	puts      []putCall
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		refs:     make(map[feed.UserID][]feed.ItemRef),
		items:    make(map[itemKey][]byte),
		profiles: make(map[feed.UserID]*feed.ProfileRecord),
	}
}

// seed stores refs with deterministic payloads, keeping the log descending.
func (f *fakeRelay) seed(user feed.UserID, refs ...feed.ItemRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range refs {
		f.storeLocked(user, r, []byte("payload-"+r.Sig.Short()))
	}
}

func (f *fakeRelay) seedProfile(user feed.UserID, ref feed.ItemRef, profile *feed.Profile) {
	data, err := feed.ProfilePayload(profile)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[user] = &feed.ProfileRecord{Ref: ref, Data: data}
}

func (f *fakeRelay) storeLocked(user feed.UserID, ref feed.ItemRef, data []byte) {
	for _, r := range f.refs[user] {
		if r.Sig == ref.Sig {
			return
		}
	}
	refs := append(f.refs[user], ref)
	sort.Slice(refs, func(i, j int) bool { return refs[i].Compare(refs[j]) > 0 })
	f.refs[user] = refs
	f.items[itemKey{user, ref.Sig}] = append([]byte(nil), data...)
}

func (f *fakeRelay) ListRefs(_ context.Context, user feed.UserID, cursor string, limit int) ([]feed.ItemRef, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, "", f.listErr
	}

	refs := f.refs[user]
	off := 0
	if cursor != "" {
		off, _ = strconv.Atoi(cursor)
	}
	if off >= len(refs) {
		return nil, "", nil
	}
	end := off + limit
	if end > len(refs) {
		end = len(refs)
	}

	page := append([]feed.ItemRef(nil), refs[off:end]...)
	next := ""
	if end < len(refs) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

func (f *fakeRelay) GetItem(_ context.Context, user feed.UserID, sig feed.Signature) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.items[itemKey{user, sig}]
	if !ok {
		return nil, relay.ErrNotFound
	}
	return data, nil
}

func (f *fakeRelay) PutItem(_ context.Context, user feed.UserID, ref feed.ItemRef, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, putCall{user: user, ref: ref, data: append([]byte(nil), data...)})
	if f.putErr != nil {
		return f.putErr
	}
	f.storeLocked(user, ref, data)
	return nil
}

func (f *fakeRelay) GetProfile(_ context.Context, user feed.UserID) (*feed.ProfileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	rec, ok := f.profiles[user]
	if !ok {
		return nil, relay.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRelay) putCalls() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.puts...)
}

func (f *fakeRelay) hasItem(user feed.UserID, sig feed.Signature) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[itemKey{user, sig}]
	return ok
}

// recordingReporter captures ended events for assertions.
type recordingReporter struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	report.Event
	outcome string
	message string
	bytes   int64
}

func (r *recordingReporter) Start(ev report.Event) report.Handle {
	return &recordingHandle{r: r, ev: ev}
}

func (r *recordingReporter) byKind(kind report.Kind) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type recordingHandle struct {
	r     *recordingReporter
	ev    report.Event
	bytes int64
}

func (h *recordingHandle) BytesCopied(n int64) { h.bytes += n }
func (h *recordingHandle) Success()            { h.end("success", "") }
func (h *recordingHandle) Warning(msg string)  { h.end("warning", msg) }
func (h *recordingHandle) Error(msg string)    { h.end("error", msg) }

func (h *recordingHandle) end(outcome, msg string) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.r.events = append(h.r.events, recordedEvent{Event: h.ev, outcome: outcome, message: msg, bytes: h.bytes})
}
