package ws

import (
	"encoding/json"
	"fmt"

	"github.com/feedsync/feedsync/internal/feed"
)

// Frame ops spoken on /ws/stream. The downstream ops are exported so
// clients can route server frames without restating the protocol.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPing        = "ping"

	OpHello = "hello"
	OpAck   = "ack"
	OpPong  = "pong"

	// OpItem marks frames announcing a newly stored item.
	OpItem = "item"
)

// ItemFrame announces one newly stored item to subscribers of its user.
type ItemFrame struct {
	Op   string         `json:"op"`
	User feed.UserID    `json:"user"`
	TS   int64          `json:"ts"`
	Sig  feed.Signature `json:"sig"`
}

// Upstream request types for internal routing
type (
	subscribeRequest struct {
		users []feed.UserID
		ackID *uint64
	}
	unsubscribeRequest struct {
		users []feed.UserID
		ackID *uint64
	}
	pingRequest struct{}
)

// upstreamFrame is the wire shape of every client-to-relay frame.
type upstreamFrame struct {
	Op    string        `json:"op"`
	ID    *uint64       `json:"id,omitempty"`
	Users []feed.UserID `json:"users,omitempty"`
}

// parseUpstreamFrame parses a JSON frame sent by a client.
func parseUpstreamFrame(data []byte) (any, error) {
	var frame upstreamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("unmarshal upstream frame: %w", err)
	}

	switch frame.Op {
	case opSubscribe:
		return &subscribeRequest{users: frame.Users, ackID: frame.ID}, nil

	case opUnsubscribe:
		return &unsubscribeRequest{users: frame.Users, ackID: frame.ID}, nil

	case opPing:
		return &pingRequest{}, nil

	default:
		return nil, fmt.Errorf("unknown frame op: %q", frame.Op)
	}
}

// BuildSubscribeFrame encodes a subscribe request for the given users.
// Watch clients use this to register interest after connecting.
func BuildSubscribeFrame(ackID uint64, users []feed.UserID) []byte {
	data, _ := json.Marshal(upstreamFrame{
		Op:    opSubscribe,
		ID:    &ackID,
		Users: users,
	})
	return data
}

// BuildItemFrame encodes the announcement for one stored item.
func BuildItemFrame(user feed.UserID, ref feed.ItemRef) []byte {
	data, _ := json.Marshal(ItemFrame{
		Op:   OpItem,
		User: user,
		TS:   ref.Timestamp,
		Sig:  ref.Sig,
	})
	return data
}

// buildHelloFrame greets a freshly connected client.
func buildHelloFrame(connID, relay string) []byte {
	msg := map[string]any{
		"op":    OpHello,
		"conn":  connID,
		"relay": relay,
	}
	data, _ := json.Marshal(msg)
	return data
}

// buildAckFrame acknowledges a subscribe or unsubscribe request.
func buildAckFrame(ackID uint64, ok bool) []byte {
	msg := map[string]any{
		"op": OpAck,
		"id": ackID,
		"ok": ok,
	}
	data, _ := json.Marshal(msg)
	return data
}

// buildPongFrame answers a client ping.
func buildPongFrame() []byte {
	msg := map[string]any{"op": OpPong}
	data, _ := json.Marshal(msg)
	return data
}
