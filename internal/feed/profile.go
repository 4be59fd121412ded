package feed

import (
	"encoding/json"
	"fmt"
)

// EnvelopeKindProfile marks items whose content is a user profile.
const EnvelopeKindProfile = "profile"

// Envelope is the outer JSON structure of every item payload. Relays parse
// it to index profiles; all other kinds are opaque to this tool.
type Envelope struct {
	Kind    string          `json:"kind"`
	Content json.RawMessage `json:"content"`
}

// Follow is one entry of a profile's follow list. Name is the petname the
// profile owner uses for the followed user.
type Follow struct {
	ID   UserID `json:"id"`
	Name string `json:"name,omitempty"`
}

// Profile is the content of a profile item.
type Profile struct {
	Name    string   `json:"name,omitempty"`
	About   string   `json:"about,omitempty"`
	Follows []Follow `json:"follows,omitempty"`
}

// ProfileRecord pairs a profile item's reference with its raw payload, as
// returned by a relay.
type ProfileRecord struct {
	Ref  ItemRef
	Data []byte
}

// ParseEnvelope decodes the outer structure of an item payload.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding item envelope: %w", err)
	}
	return &env, nil
}

// ParseProfile decodes a profile item payload.
func ParseProfile(data []byte) (*Profile, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Kind != EnvelopeKindProfile {
		return nil, fmt.Errorf("item kind is %q, not %q", env.Kind, EnvelopeKindProfile)
	}
	var p Profile
	if err := json.Unmarshal(env.Content, &p); err != nil {
		return nil, fmt.Errorf("decoding profile content: %w", err)
	}
	return &p, nil
}

// ProfilePayload encodes a profile into an item payload envelope.
func ProfilePayload(p *Profile) ([]byte, error) {
	content, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding profile content: %w", err)
	}
	return json.Marshal(Envelope{Kind: EnvelopeKindProfile, Content: content})
}
