package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPromptStore(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sercha-ask", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	// Load triggers lazy init
	_, err = store.Load(driven.PromptSynthesize)
	require.NoError(t, err)

	files := []string{
		"decompose.txt",
		"synthesize.txt",
		"condense.txt",
		"rerank.txt",
		"README.md",
	}
	for _, f := range files {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Load_ReturnsDefaultContent(t *testing.T) {
	tests := []struct {
		name     string
		contains string
	}{
		{driven.PromptDecompose, "%d"},
		{driven.PromptSynthesize, "square brackets"},
		{driven.PromptCondense, "standalone question"},
		{driven.PromptRerank, "0 to 10"},
	}

	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := store.Load(tt.name)
			require.NoError(t, err)
			assert.Contains(t, prompt, tt.contains)
		})
	}
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()

	// Create custom prompt before store init
	customContent := "Sources:\n%s\nQ: %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synthesize.txt"), []byte(customContent), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptSynthesize)

	require.NoError(t, err)
	assert.Equal(t, customContent, prompt)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, _ = store.Load(driven.PromptCondense) // Trigger init
	require.NoError(t, os.Remove(filepath.Join(dir, "condense.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptCondense)

	require.NoError(t, err)
	want, _ := defaultPrompt(driven.PromptCondense)
	assert.Equal(t, want, prompt)
}

func TestPromptStore_Load_EmptyFileUsesDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rerank.txt"), []byte("   \n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptRerank)
	require.NoError(t, err)
	want, _ := defaultPrompt(driven.PromptRerank)
	assert.Equal(t, want, prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent_prompt")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_Load_CachesResults(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt1, err := store.Load(driven.PromptDecompose)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "decompose.txt"), []byte("modified content"), 0600))

	// Second load should return cached value
	prompt2, err := store.Load(driven.PromptDecompose)
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}

func TestPromptStore_Reload_ClearsCache(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptDecompose)
	require.NoError(t, err)

	modifiedContent := "at most %d questions for: %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "decompose.txt"), []byte(modifiedContent), 0600))

	store.Reload()

	prompt, err := store.Load(driven.PromptDecompose)
	require.NoError(t, err)
	assert.Equal(t, modifiedContent, prompt)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)

	errs := make(chan error, goroutines)
	prompts := make(chan string, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptSynthesize)
			if err != nil {
				errs <- err
				return
			}
			prompts <- prompt
		}()
	}

	wg.Wait()
	close(errs)
	close(prompts)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	var first string
	for prompt := range prompts {
		if first == "" {
			first = prompt
		} else {
			assert.Equal(t, first, prompt)
		}
	}
}

func TestPromptStore_DoesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()

	customContent := "pre-existing custom prompt"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "decompose.txt"), []byte(customContent), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	// Trigger init
	_, _ = store.Load(driven.PromptSynthesize)

	data, err := os.ReadFile(filepath.Join(dir, "decompose.txt"))
	require.NoError(t, err)
	assert.Equal(t, customContent, string(data))
}

func TestPromptStore_TrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "condense.txt"), []byte("\n\n  prompt content  \n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptCondense)
	require.NoError(t, err)
	assert.Equal(t, "prompt content", prompt)
}

func TestPromptStore_Watch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	original, err := store.Load(driven.PromptCondense)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	path := filepath.Join(dir, "condense.txt")
	assert.Eventually(t, func() bool {
		// Rewrite each tick so a write lands after the watcher is attached.
		if err := os.WriteFile(path, []byte("edited condense prompt"), 0600); err != nil {
			return false
		}
		prompt, err := store.Load(driven.PromptCondense)
		return err == nil && prompt == "edited condense prompt"
	}, 5*time.Second, 50*time.Millisecond)
	assert.NotEqual(t, original, "edited condense prompt")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestPromptStore_Load_RejectsWrongPlaceholders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synthesize.txt"), []byte("Answer %s"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rerank.txt"), []byte("100%% sure? %s vs %s"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptSynthesize)
	require.NoError(t, err)
	want, _ := defaultPrompt(driven.PromptSynthesize)
	assert.Equal(t, want, prompt)

	prompt, err = store.Load(driven.PromptRerank)
	require.NoError(t, err)
	assert.Equal(t, "100%% sure? %s vs %s", prompt)
}

func TestVerbs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"no placeholders", nil},
		{"at most %d for %s", []string{"d", "s"}},
		{"%5.2f%% of %q", []string{"f", "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, verbs(tt.in))
		})
	}
}
