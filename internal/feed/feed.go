package feed

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// SignatureSize is the length of an item signature in bytes.
const SignatureSize = 64

// Signature uniquely identifies an item within a user's log. Two refs name
// the same record iff their signature bytes are equal.
type Signature [SignatureSize]byte

// ParseSignature decodes a hex-encoded signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := hex.DecodeString(s)
	if err != nil {
		return sig, fmt.Errorf("decoding signature: %w", err)
	}
	if len(raw) != SignatureSize {
		return sig, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Short returns an abbreviated form for log fields.
func (s Signature) Short() string {
	return hex.EncodeToString(s[:4])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	sig, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// ItemRef identifies one item in a user's log: the millisecond UTC timestamp
// reported by servers plus the item signature. Signatures are identity;
// timestamps are ordering hints and may collide.
type ItemRef struct {
	Timestamp int64     `json:"ts"`
	Sig       Signature `json:"sig"`
}

// Compare orders refs by timestamp, breaking ties on signature bytes.
// Returns a positive value when r is more recent than o (or wins the
// signature tie), and zero only when the refs are identical.
func (r ItemRef) Compare(o ItemRef) int {
	if r.Timestamp != o.Timestamp {
		if r.Timestamp > o.Timestamp {
			return 1
		}
		return -1
	}
	return bytes.Compare(r.Sig[:], o.Sig[:])
}

func (r ItemRef) Equal(o ItemRef) bool {
	return r.Compare(o) == 0
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%d/%s", r.Timestamp, r.Sig.Short())
}

// UserID is the opaque identifier servers key item logs by.
type UserID string

// UserRef carries a user id plus the advisory names discovered for it.
// DisplayName is self-declared in the user's own profile; KnownName is the
// petname a follower uses for them. Identity is the ID alone.
type UserRef struct {
	ID          UserID
	DisplayName string
	KnownName   string
}

// Label picks the best available human-readable name for logs.
func (u UserRef) Label() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.KnownName != "":
		return u.KnownName
	}
	id := string(u.ID)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
