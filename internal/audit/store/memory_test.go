package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancehub/internal/audit"
)

func TestMemoryOutbox(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for range 3 {
		require.NoError(t, s.Append(ctx, newEntry(audit.ActionAddVersion, time.Now().UTC())))
	}

	batch, err := s.PendingOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	require.NoError(t, s.MarkPublished(ctx, []string{batch[0].ID, batch[1].ID}, time.Now()))
	rest, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.NotEqual(t, batch[0].ID, rest[0].ID)

	entries, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3, "publishing does not touch the ledger")
}
