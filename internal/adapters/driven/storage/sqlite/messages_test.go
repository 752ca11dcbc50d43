package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

func testMessage(id string, category domain.SenderCategory, at time.Time) *domain.Message {
	return &domain.Message{
		ID:             id,
		SenderName:     "Sarah Chen",
		SenderCategory: category,
		Channel:        domain.ChannelEmail,
		Subject:        "Quick check-in on metrics",
		Body:           "Could you share the latest dashboard?",
		CreatedAt:      at,
	}
}

func TestMessageStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ms := store.MessageStore()

	at := time.Date(2025, 3, 1, 9, 0, 0, 123, time.UTC)
	require.NoError(t, ms.SaveMessage(ctx, testMessage("m-1", domain.SenderInvestor, at)))

	got, err := ms.GetMessage(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Sarah Chen", got.SenderName)
	assert.Equal(t, domain.SenderInvestor, got.SenderCategory)
	assert.Equal(t, domain.ChannelEmail, got.Channel)
	assert.True(t, at.Equal(got.CreatedAt))

	err = ms.SaveMessage(ctx, testMessage("m-1", domain.SenderInvestor, at))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = ms.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMessageStore_ListNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ms := store.MessageStore()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, ms.SaveMessage(ctx, testMessage("m-1", domain.SenderInvestor, base)))
	require.NoError(t, ms.SaveMessage(ctx, testMessage("m-2", domain.SenderSales, base.Add(time.Minute))))
	require.NoError(t, ms.SaveMessage(ctx, testMessage("m-3", domain.SenderInvestor, base.Add(2*time.Minute))))

	all, err := ms.ListMessages(ctx, domain.MessageFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "m-3", all[0].ID)

	investors, err := ms.ListMessages(ctx, domain.MessageFilter{SenderCategory: domain.SenderInvestor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, investors, 1)
	assert.Equal(t, "m-3", investors[0].ID)
}

func TestMessageStore_Chunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ms := store.MessageStore()

	require.NoError(t, ms.SaveMessage(ctx, testMessage("m-1", domain.SenderSupport, time.Now())))

	chunks := []domain.Chunk{
		{ID: "m-1#0", MessageID: "m-1", Position: 0, Text: "first", Span: domain.Span{Start: 0, End: 5}},
		{ID: "m-1#1", MessageID: "m-1", Position: 1, Text: "second", Span: domain.Span{Start: 3, End: 9}},
	}
	require.NoError(t, ms.SaveChunks(ctx, "m-1", chunks))

	got, err := ms.GetChunks(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, chunks, got)

	// Replacing drops stale chunks
	require.NoError(t, ms.SaveChunks(ctx, "m-1", chunks[:1]))
	got, err = ms.GetChunks(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
