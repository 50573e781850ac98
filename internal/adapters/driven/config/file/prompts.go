package file

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed prompts
var builtin embed.FS

// PromptStore serves prompt templates from <dir>/<name>.txt. Missing, empty
// or malformed files fall back to the built-in prompt of the same name.
//
// Nothing touches the disk until the first Load or Watch, which seeds the
// directory with the built-in prompts without overwriting edits.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore returns a store rooted at dir, or ~/.sercha-ask/prompts
// when dir is empty.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	fallback, known := defaultPrompt(name)
	prompt, err := s.read(name)
	switch {
	case err != nil && !known:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case err != nil, prompt == "":
		prompt = fallback
	case known && !slices.Equal(verbs(prompt), verbs(fallback)):
		logger.Warn("prompt %s.txt has placeholders %v, want %v; using the built-in prompt",
			name, verbs(prompt), verbs(fallback))
		prompt = fallback
	}
	if prompt == "" {
		return "", fmt.Errorf("load prompt %q: empty file", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

// Watch calls Reload whenever a .txt file in the prompt directory changes.
// It returns nil once ctx is done.
func (s *PromptStore) Watch(ctx context.Context) error {
	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		return s.seedErr
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".txt" || event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("prompt %s changed (%s), reloading", filepath.Base(event.Name), event.Op)
			s.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("prompt watcher: %w", err)
		}
	}
}

// seed copies every built-in file into the directory unless a file with
// that name already exists. A failure is logged and Load keeps serving
// built-in prompts.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		logger.Warn("%v", s.seedErr)
		return
	}

	entries, err := fs.ReadDir(builtin, "prompts")
	if err != nil {
		s.seedErr = err
		return
	}
	for _, e := range entries {
		dst := filepath.Join(s.dir, e.Name())
		if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		data, err := builtin.ReadFile("prompts/" + e.Name())
		if err == nil {
			err = os.WriteFile(dst, data, 0600)
		}
		if err != nil {
			s.seedErr = fmt.Errorf("seed %s: %w", e.Name(), err)
			logger.Warn("%v", s.seedErr)
			return
		}
	}
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// defaultPrompt returns the built-in template called name.
func defaultPrompt(name string) (string, bool) {
	data, err := builtin.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

var verbPattern = regexp.MustCompile(`%[-+# 0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z%]`)

// verbs lists the formatting verbs of a template in order, ignoring %%.
func verbs(template string) []string {
	var out []string
	for _, v := range verbPattern.FindAllString(template, -1) {
		if v != "%%" {
			out = append(out, v[len(v)-1:])
		}
	}
	return out
}
