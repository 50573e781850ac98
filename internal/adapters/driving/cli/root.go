// Package cli implements the sercha-ask command line with cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ask/internal/app"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// version is set by Execute from build information.
var version = "dev"

// skipSetup marks commands that run without services.
const skipSetup = "skip-setup"

// Normaliser turns file bytes into indexable text.
type Normaliser interface {
	Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error)
	Supports(mimeType string) bool
}

// Services holds everything commands call into.
type Services struct {
	Ask        driving.AskService
	Search     driving.SearchService
	Rerank     driving.RerankService
	Ingest     driving.IngestService
	Documents  driving.DocumentService
	Spaces     driving.SpaceService
	Normaliser Normaliser

	// DefaultSpace returns the space used when --space is not given.
	DefaultSpace func(ctx context.Context) (string, error)

	// WatchPrompts reloads prompt templates on change until ctx ends. Optional.
	WatchPrompts func(ctx context.Context) error
}

var (
	configPath  string
	verbose     bool
	memoryStore bool

	askService      driving.AskService
	searchService   driving.SearchService
	rerankService   driving.RerankService
	ingestService   driving.IngestService
	documentService driving.DocumentService
	spaceService    driving.SpaceService
	normaliser      Normaliser
	defaultSpace    func(ctx context.Context) (string, error)
	watchPrompts    func(ctx context.Context) error

	// injected is set when services come from SetServices instead of config.
	injected bool
	closeApp func() error
)

var rootCmd = &cobra.Command{
	Use:   "sercha-ask",
	Short: "Ask questions of your documents and the web, with citations",
	Long: `sercha-ask answers questions from a local knowledge base, optionally
enriched with web search. Answers cite the passages they are built from.

Documents are ingested into search spaces and retrieved with hybrid
keyword (BM25) and semantic search.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.sercha-ask/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline stages to stderr")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "keep the index in memory for this run")
}

// SetServices injects services directly, bypassing configuration.
func SetServices(s *Services) {
	injected = s != nil
	apply(s)
}

func apply(s *Services) {
	if s == nil {
		s = &Services{}
	}
	askService = s.Ask
	searchService = s.Search
	rerankService = s.Rerank
	ingestService = s.Ingest
	documentService = s.Documents
	spaceService = s.Spaces
	normaliser = s.Normaliser
	defaultSpace = s.DefaultSpace
	watchPrompts = s.WatchPrompts
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if injected || cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	a, err := app.New(cmd.Context(), app.Options{ConfigPath: configPath, Memory: memoryStore})
	if err != nil {
		return err
	}
	for _, w := range a.Warnings {
		warnf(cmd, "%s", w)
	}

	apply(&Services{
		Ask:          a.Ask,
		Search:       a.Search,
		Rerank:       a.Rerank,
		Ingest:       a.Ingest,
		Documents:    a.Documents,
		Spaces:       a.Spaces,
		Normaliser:   a.Normalisers,
		DefaultSpace: a.DefaultSpace,
		WatchPrompts: watchIfEnabled(a),
	})
	closeApp = a.Close
	return nil
}

func watchIfEnabled(a *app.App) func(ctx context.Context) error {
	if !a.Config.Prompts.Watch {
		return nil
	}
	return a.Prompts.Watch
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeApp == nil {
		return nil
	}
	err := closeApp()
	closeApp = nil
	return err
}

// resolveSpace maps a --space value (ID or name) to a space ID.
func resolveSpace(ctx context.Context, space string) (string, error) {
	space = strings.TrimSpace(space)
	if space == "" {
		if defaultSpace == nil {
			return "", errors.New("no --space given and no default space configured")
		}
		return defaultSpace(ctx)
	}
	if spaceService == nil {
		return space, nil
	}
	found, err := spaceService.Get(ctx, space)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("space %q not found (see 'sercha-ask spaces list')", space)
		}
		return "", err
	}
	return found.ID, nil
}

// warnf prints a warning to stderr.
func warnf(cmd *cobra.Command, format string, args ...any) {
	p := newPrinter(cmd.ErrOrStderr())
	p.printf("%s\n", p.style(warnStyle, "warning: "+fmt.Sprintf(format, args...)))
}
