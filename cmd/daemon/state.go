package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunTracker records the wall-clock time of the last successful sync run,
// so a restarted daemon knows whether it missed an interval.
type RunTracker struct {
	stateFile string
}

// NewRunTracker creates a tracker backed by the given state file
func NewRunTracker(stateFile string) *RunTracker {
	return &RunTracker{stateFile: stateFile}
}

// LastRun reads the recorded run time. A missing or malformed state file
// reads as the zero time.
func (t *RunTracker) LastRun() time.Time {
	data, err := os.ReadFile(t.stateFile)
	if err != nil {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}
	}
	return ts
}

// SetLastRun writes the run time to the state file
func (t *RunTracker) SetLastRun(ts time.Time) error {
	// Ensure directory exists
	dir := filepath.Dir(t.stateFile)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	return os.WriteFile(t.stateFile, []byte(ts.UTC().Format(time.RFC3339)+"\n"), 0600)
}

// Stale reports whether the last run is at least one interval old
func (t *RunTracker) Stale(now time.Time, interval time.Duration) bool {
	return now.Sub(t.LastRun()) >= interval
}
