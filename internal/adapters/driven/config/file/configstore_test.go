package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_UsesDirectory(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "nothing is written until a value is set")
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigStore_ReadsNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := `
[embedding]
provider = "ollama"
model = "nomic-embed-text"

[retrieval]
top_k = 7
source_timeout = "1500ms"
rrf_constant = 60

[indexer]
retry_per_second = 2.5

[engine]
drafts = false

[pipeline]
processors = ["htmlbody", "chunker"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 7, store.GetInt("retrieval.top_k"))
	assert.Equal(t, "1500ms", store.GetString("retrieval.source_timeout"))
	assert.Equal(t, 2.5, store.GetFloat("indexer.retry_per_second"))
	assert.Equal(t, 60.0, store.GetFloat("retrieval.rrf_constant"))
	assert.False(t, store.GetBool("engine.drafts"))
	assert.Equal(t, []string{"htmlbody", "chunker"}, store.GetStringSlice("pipeline.processors"))
}

func TestConfigStore_TypeMismatchReturnsZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("embedding.provider", "openai"))

	assert.Equal(t, 0, store.GetInt("embedding.provider"))
	assert.Equal(t, 0.0, store.GetFloat("embedding.provider"))
	assert.False(t, store.GetBool("embedding.provider"))
	assert.Nil(t, store.GetStringSlice("embedding.provider"))
	assert.Equal(t, "", store.GetString("missing"))
}

func TestConfigStore_SetPersistsAsTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("retrieval.top_k", 3))
	require.NoError(t, store.Set("retrieval.reranker", "lexical"))
	require.NoError(t, store.Set("llm.provider", "anthropic"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[retrieval]")
	assert.Contains(t, string(raw), "[llm]")

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.GetInt("retrieval.top_k"))
	assert.Equal(t, "lexical", reopened.GetString("retrieval.reranker"))
	assert.Equal(t, "anthropic", reopened.GetString("llm.provider"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not [valid toml"), 0600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("retrieval.top_k", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("retrieval.top_k")
		}()
	}
	wg.Wait()
}

func TestNestKeys(t *testing.T) {
	nested := nestKeys(map[string]any{
		"a.b":   1,
		"a.c.d": "x",
		"top":   true,
		"a":     "shadowed",
	})

	a, ok := nested["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, a["b"])
	assert.Equal(t, map[string]any{"d": "x"}, a["c"])
	assert.Equal(t, true, nested["top"])

	assert.Equal(t, map[string]any{"a.b": 1, "a.c.d": "x", "top": true}, flattenKeys(map[string]any{
		"a":   map[string]any{"b": 1, "c": map[string]any{"d": "x"}},
		"top": true,
	}, ""))
}
