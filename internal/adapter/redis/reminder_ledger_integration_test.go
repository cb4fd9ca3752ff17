package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderLedger_ClaimOnce(t *testing.T) {
	client := setupTestClient(t)
	ledger := NewReminderLedger(client)
	ctx := context.Background()
	id := uuid.New()

	first, err := ledger.Claim(ctx, id, time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ledger.Claim(ctx, id, time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, ledger.Release(ctx, id))

	again, err := ledger.Claim(ctx, id, time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}
