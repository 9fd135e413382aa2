package cli

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSweepTime(t *testing.T) {
	fixed := time.Date(2026, 5, 4, 13, 0, 0, 0, time.FixedZone("X", 3600))

	got, err := parseSweepTime("", func() time.Time { return fixed })
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(fixed))

	got, err = parseSweepTime("2026-02-01", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseSweepTime("01/02/2026", nil)
	require.Error(t, err)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := NewJobsCLI(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	defer func() { _ = c.Close() }()

	_, err := c.Trigger(context.Background(), "reindex_everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "jobs", "sweep"} {
		assert.True(t, names[want], "missing %s", want)
	}
}
