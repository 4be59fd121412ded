package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/feedsync/feedsync/internal/config"
	"github.com/feedsync/feedsync/internal/engine"
)

type captured struct {
	path     string
	title    string
	priority string
	tags     string
	auth     string
	body     string
}

func newNotifyServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()

	var seen []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = append(seen, captured{
			path:     r.URL.Path,
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			auth:     r.Header.Get("Authorization"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testConfig(server string) *config.NotifyConfig {
	return &config.NotifyConfig{
		Enabled:  true,
		Server:   server,
		Topic:    "runs",
		Priority: "default",
		Tags:     "feedsync",
		Token:    "tok",
	}
}

func TestSendSuccess(t *testing.T) {
	srv, seen := newNotifyServer(t, http.StatusOK)
	client := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))

	result := &engine.RunResult{
		Tasks:       3,
		Succeeded:   3,
		ItemsCopied: 7,
		BytesCopied: 2048,
	}
	require.NoError(t, client.SendSuccess(context.Background(), result, 90*time.Second))

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, "/runs", got.path)
	assert.Equal(t, "Sync Complete: 3/3 users", got.title)
	assert.Equal(t, "default", got.priority)
	assert.Equal(t, "feedsync,white_check_mark", got.tags)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Contains(t, got.body, "Items copied: 7")
	assert.Contains(t, got.body, "Duration: 1m30s")
}

func TestSendFailureOverridesPriority(t *testing.T) {
	srv, seen := newNotifyServer(t, http.StatusOK)
	client := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))

	result := &engine.RunResult{
		Tasks:     4,
		Succeeded: 2,
		Failed:    2,
		Errors:    []string{"e1", "e2", "e3", "e4", "e5"},
	}
	err := client.SendFailure(context.Background(), result, time.Minute, errors.New("boom"))
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, "Sync Failed: 2/4 users", got.title)
	assert.Equal(t, "high", got.priority)
	assert.Equal(t, "feedsync,x", got.tags)
	assert.Contains(t, got.body, "Error: boom")
	assert.Contains(t, got.body, "- e1")
	assert.Contains(t, got.body, "... and 2 more errors")
	assert.NotContains(t, got.body, "- e4")
}

func TestDisabledNotifierSendsNothing(t *testing.T) {
	srv, seen := newNotifyServer(t, http.StatusOK)

	cfg := testConfig(srv.URL)
	cfg.Enabled = false

	notifier := New(cfg, zaptest.NewLogger(t))
	assert.IsType(t, &NoopNotifier{}, notifier)

	require.NoError(t, notifier.SendSuccess(context.Background(), &engine.RunResult{}, time.Second))
	assert.Empty(t, *seen)
}

func TestSendSurfacesServerErrors(t *testing.T) {
	srv, _ := newNotifyServer(t, http.StatusInternalServerError)
	client := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))

	err := client.SendSuccess(context.Background(), &engine.RunResult{Tasks: 1}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
