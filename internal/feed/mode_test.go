package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatestModeContinues(t *testing.T) {
	mode := LatestMode(3)

	assert.True(t, mode.Continues(0))
	assert.True(t, mode.Continues(2))
	assert.False(t, mode.Continues(3))
	assert.False(t, mode.Continues(10))
}

func TestFullModeAlwaysContinues(t *testing.T) {
	mode := FullMode(false)

	assert.True(t, mode.Continues(0))
	assert.True(t, mode.Continues(1_000_000))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "latest(50)", LatestMode(50).String())
	assert.Equal(t, "full", FullMode(false).String())
	assert.Equal(t, "full+backfill", FullMode(true).String())
}
