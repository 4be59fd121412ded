package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
)

func testSig(b byte) feed.Signature {
	var s feed.Signature
	for i := range s {
		s[i] = b
	}
	return s
}

func newTestClient(baseURL string, retries int) *HTTPClient {
	logger, _ := zap.NewDevelopment()
	return NewHTTPClient(baseURL, "test-token", 100, 30*time.Second, 10*time.Millisecond, retries, logger)
}

func TestListRefs_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify auth header
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-token" {
			t.Errorf("expected Bearer test-token, got %s", auth)
		}

		// Verify path
		expectedPath := "/v1/users/alice/refs"
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}

		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("expected limit=50, got %s", got)
		}
		if got := r.URL.Query().Get("cursor"); got != "300:aa" {
			t.Errorf("expected cursor=300:aa, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(refsResponse{
			Refs: []feed.ItemRef{
				{Timestamp: 300, Sig: testSig(0xaa)},
				{Timestamp: 200, Sig: testSig(0xbb)},
			},
			Next: "200:bb",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	refs, next, err := client.ListRefs(context.Background(), "alice", "300:aa", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Timestamp != 300 || refs[1].Timestamp != 200 {
		t.Errorf("unexpected refs: %v", refs)
	}
	if next != "200:bb" {
		t.Errorf("unexpected next cursor: %s", next)
	}
}

func TestListRefs_OmitsEmptyCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("cursor") {
			t.Error("expected no cursor param on first page")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(refsResponse{})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	refs, next, err := client.ListRefs(context.Background(), "alice", "", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 || next != "" {
		t.Errorf("expected empty page, got %v next=%q", refs, next)
	}
}

func TestGetItem_Success(t *testing.T) {
	sig := testSig(0xab)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedPath := "/v1/users/alice/items/" + sig.String()
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}
		w.Write([]byte(`{"kind":"note","content":"hello"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	data, err := client.GetItem(context.Background(), "alice", sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("unexpected item body: %s", data)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	_, err := client.GetItem(context.Background(), "alice", testSig(0x01))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutItem_Success(t *testing.T) {
	sig := testSig(0xcd)
	payload := []byte(`{"kind":"note","content":"copied"}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		expectedPath := "/v1/users/bob/items/" + sig.String()
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}
		if got := r.URL.Query().Get("ts"); got != "1700000000000" {
			t.Errorf("expected ts=1700000000000, got %s", got)
		}

		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, payload) {
			t.Errorf("body mismatch: %s", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	ref := feed.ItemRef{Timestamp: 1700000000000, Sig: sig}
	if err := client.PutItem(context.Background(), "bob", ref, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPutItem_AuthFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	ref := feed.ItemRef{Timestamp: 100, Sig: testSig(0x02)}
	err := client.PutItem(context.Background(), "bob", ref, []byte("x"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestGetProfile_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedPath := "/v1/users/alice/profile"
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(profileResponse{
			Ref:  feed.ItemRef{Timestamp: 500, Sig: testSig(0xee)},
			Item: []byte(`{"kind":"profile","content":{"name":"Alice"}}`),
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	rec, err := client.GetProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Ref.Timestamp != 500 {
		t.Errorf("unexpected profile ref: %v", rec.Ref)
	}
	if !strings.Contains(string(rec.Data), "Alice") {
		t.Errorf("unexpected profile payload: %s", rec.Data)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	_, err := client.GetProfile(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)

	_, _, err := client.ListRefs(context.Background(), "alice", "", 10)
	if err == nil {
		t.Error("expected error for server failure")
	}

	// Should have attempted 3 times (initial + 2 retries)
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_RetriesRateLimits(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(refsResponse{Next: ""})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	_, _, err := client.ListRefs(context.Background(), "alice", "", 10)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}
