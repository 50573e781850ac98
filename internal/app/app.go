// Package app wires configuration, storage, providers and services into a
// running sercha-ask instance.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/services"
	"github.com/custodia-labs/sercha-ask/internal/logger"
	"github.com/custodia-labs/sercha-ask/internal/normalisers/html"
	"github.com/custodia-labs/sercha-ask/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-ask/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-ask/internal/postprocessors/chunker"
)

// Options control how the application is assembled.
type Options struct {
	// ConfigPath is the TOML file to load. Empty means the default path.
	ConfigPath string

	// Memory forces the in-memory store regardless of configuration.
	Memory bool

	// SkipPing builds providers without checking they are reachable.
	SkipPing bool
}

// App holds the assembled services. Close releases everything.
type App struct {
	Config domain.Config

	Ask         *services.AskService
	Search      *services.SearchService
	Rerank      *services.RerankService
	Ingest      *services.IngestService
	Documents   *services.DocumentService
	Spaces      *services.SpaceService
	Normalisers *services.NormaliserRegistry
	Prompts     *file.PromptStore

	// Warnings lists providers that were configured but left out.
	Warnings []string

	closers []func() error
}

// New loads configuration and builds the application. Configuration
// problems wrap domain.ErrConfiguration.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := file.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Memory {
		cfg.Storage.Memory = true
	}
	return Build(ctx, cfg, !opts.SkipPing)
}

// Build assembles the application from an already validated config.
func Build(ctx context.Context, cfg domain.Config, ping bool) (_ *App, err error) {
	logger.Section("Startup")

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	prompts, err := file.NewPromptStore(cfg.Prompts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: prompts: %w", domain.ErrConfiguration, err)
	}
	a.Prompts = prompts

	providers, err := ai.Init(ctx, &cfg, prompts, ping)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { providers.Close(); return nil })
	a.Warnings = providers.Warnings

	dims := cfg.Embedding.Dimensions
	if providers.EmbeddingService != nil {
		dims = providers.EmbeddingService.Dimensions()
	}

	docs, keyword, vector, err := a.openStore(cfg, dims)
	if err != nil {
		return nil, err
	}

	// Only wire the dense path when something can embed queries.
	embedder := providers.EmbeddingService
	if embedder == nil {
		vector = nil
	}

	llm := providers.LLMService
	timeout := cfg.Agent.CallTimeout.Duration

	a.Search = services.NewSearchService(cfg.Search, docs, keyword, vector, embedder)

	a.Rerank = services.NewRerankService(providers.Reranker, cfg.Rerank.Timeout.Duration)
	web := services.NewWebSearchService(cfg.WebSearch, timeout, providers.WebProviders...)

	synth := services.NewSynthesizer(llm, cfg.Agent.SynthesisRetries, timeout)
	synth.SetPromptStore(prompts)

	var decomposer services.Decomposer
	if llm != nil && cfg.Agent.Decompose {
		d := services.NewLLMDecomposer(llm, timeout)
		d.SetPromptStore(prompts)
		decomposer = d
	}

	orchestrator := services.NewOrchestrator(
		a.Search, web, a.Rerank, synth, decomposer,
		services.NewRecencyRoutingPolicy(cfg.Agent), timeout,
	)

	a.Ask = services.NewAskService(cfg.Agent, orchestrator, docs, llm)
	a.Ask.SetPromptStore(prompts)

	splitter := chunker.New(
		chunker.WithChunkSize(cfg.Ingest.ChunkSize),
		chunker.WithOverlap(cfg.Ingest.ChunkOverlap),
	)
	a.Ingest, err = services.NewIngestService(cfg.Ingest, dims, docs, splitter, embedder)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.Ingest.Close(); return nil })

	a.Documents = services.NewDocumentService(docs)
	a.Spaces = services.NewSpaceService(docs)
	a.Normalisers = services.NewNormaliserRegistry(markdown.New(), html.New(), plaintext.New())

	logger.Info("Ready: dense=%v llm=%v rerank=%v web=%v",
		a.Search.DenseAvailable(), llm != nil, a.Rerank.Enabled(), web.Enabled())
	return a, nil
}

func (a *App) openStore(
	cfg domain.Config, dims int,
) (driven.DocumentStore, driven.KeywordIndex, driven.VectorIndex, error) {
	if cfg.Storage.Memory {
		logger.Info("Storage: in memory")
		store := memory.NewDocumentStore()
		return store, memory.NewKeywordIndex(store), memory.NewVectorIndex(store, dims, cfg.Search.Similarity), nil
	}

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: storage: %w", domain.ErrConfiguration, err)
	}
	a.closers = append(a.closers, store.Close)
	logger.Info("Storage: %s", store.Path())
	return store.DocumentStore(), store.KeywordIndex(), store.VectorIndex(dims, cfg.Search.Similarity), nil
}

// DefaultSpace returns the ID of the configured default space, creating the
// space when it does not exist yet.
func (a *App) DefaultSpace(ctx context.Context) (string, error) {
	name := a.Config.Storage.DefaultSpace
	if name == "" {
		name = "default"
	}
	space, err := a.Spaces.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		space, err = a.Spaces.Create(ctx, name, "Created automatically")
	}
	if err != nil {
		return "", err
	}
	return space.ID, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
