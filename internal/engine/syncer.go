package engine

import (
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/report"
)

// Syncer reconciles per-user item logs across a fixed set of relays. It
// assumes the relay set was validated upstream (at least two relays, at
// least one destination) and performs no re-validation.
type Syncer struct {
	relays   []Relay
	pageSize int
	reporter report.Reporter
	logger   *zap.Logger
}

// ItemStats aggregates one user's merge-loop outcome. Errors holds
// per-destination copy failures, which do not fail the user.
type ItemStats struct {
	Reconciled int
	Copied     int
	Bytes      int64
	Errors     []string
}

func NewSyncer(relays []Relay, pageSize int, reporter report.Reporter, logger *zap.Logger) *Syncer {
	return &Syncer{
		relays:   relays,
		pageSize: pageSize,
		reporter: reporter,
		logger:   logger,
	}
}
