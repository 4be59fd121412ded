package engine

import (
	"github.com/feedsync/feedsync/internal/relay"
)

// Relay is the engine's view of one configured server. The order of the
// slice handed to the Syncer is significant: when several relays hold the
// same item, the first-listed one serves as the copy source.
type Relay struct {
	Name        string
	URL         string
	Destination bool
	Client      relay.Client
}
