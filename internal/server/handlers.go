package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/config"
	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/store"
	"github.com/feedsync/feedsync/internal/ws"
)

// defaultPageLimit matches the documented default for the refs endpoint.
const defaultPageLimit = 200

// Server serves the relay API over an in-memory store. The hub is optional;
// when present every accepted item is announced to stream subscribers.
type Server struct {
	store  *store.Store
	hub    *ws.Hub
	config *config.DevRelayConfig
	logger *zap.Logger
}

func NewServer(st *store.Store, hub *ws.Hub, cfg *config.DevRelayConfig, logger *zap.Logger) *Server {
	return &Server{
		store:  st,
		hub:    hub,
		config: cfg,
		logger: logger,
	}
}

type refsPage struct {
	Refs []feed.ItemRef `json:"refs"`
	Next string         `json:"next,omitempty"`
}

type profileRecord struct {
	Ref  feed.ItemRef `json:"ref"`
	Item []byte       `json:"item"`
}

type putResult struct {
	Added bool `json:"added"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListRefs(w http.ResponseWriter, r *http.Request) {
	user := feed.UserID(chi.URLParam(r, "user"))

	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	refs, next, err := s.store.ListRefs(user, r.URL.Query().Get("cursor"), limit)
	if errors.Is(err, store.ErrBadCursor) {
		writeError(w, http.StatusBadRequest, "malformed cursor")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if refs == nil {
		refs = []feed.ItemRef{}
	}
	writeJSON(w, http.StatusOK, refsPage{Refs: refs, Next: next})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	user := feed.UserID(chi.URLParam(r, "user"))
	sig, err := feed.ParseSignature(chi.URLParam(r, "sig"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed signature")
		return
	}

	data, err := s.store.GetItem(user, sig)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handlePutItem(w http.ResponseWriter, r *http.Request) {
	user := feed.UserID(chi.URLParam(r, "user"))
	sig, err := feed.ParseSignature(chi.URLParam(r, "sig"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed signature")
		return
	}

	ts, err := strconv.ParseInt(r.URL.Query().Get("ts"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ts must be an integer")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}

	ref := feed.ItemRef{Timestamp: ts, Sig: sig}
	added := s.store.PutItem(user, ref, body)
	if added && s.hub != nil {
		s.hub.BroadcastItem(user, ref)
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, putResult{Added: added})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user := feed.UserID(chi.URLParam(r, "user"))

	rec, err := s.store.Profile(user)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no profile for user")
		return
	}

	writeJSON(w, http.StatusOK, profileRecord{Ref: rec.Ref, Item: rec.Data})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"relay":  s.config.Name,
		"users":  len(s.store.Users()),
		"ws":     s.config.WSEnabled,
	})
}

// handleStream authenticates and hands the connection to the hub. Stream
// clients pass the token as a query parameter because browsers cannot set
// headers on WebSocket dials.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.config.Token != "" && r.URL.Query().Get("token") != s.config.Token {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}
	s.hub.HandleStream(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
