package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "precedent-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, dbFile, filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_AppliesMigrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	version, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	for _, table := range []string{"messages", "chunks", "decisions", "graph_nodes", "graph_edges",
		"vectors", "keyword_docs", "keyword_postings"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	version, err := second.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause("v", domain.IndexFilter{Kind: domain.IndexKindDecision, Model: "hashed-256"})
	assert.Equal(t, "v.kind = ? AND v.model = ?", where)
	assert.Equal(t, []any{"decision", "hashed-256"}, args)

	where, args = filterClause("d", domain.IndexFilter{SenderCategory: domain.SenderInvestor, ExcludeMessageID: "m-1"})
	assert.Equal(t, "d.sender_category = ? AND d.message_id <> ?", where)
	assert.Equal(t, []any{"investor", "m-1"}, args)

	where, args = filterClause("v", domain.IndexFilter{})
	assert.Equal(t, "1 = 1", where)
	assert.Nil(t, args)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "d.id, d.message_id", prefixed("d", "id,\n\tmessage_id"))
}
