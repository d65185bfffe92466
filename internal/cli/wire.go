package cli

import (
	"fmt"

	"rfprag/config"
	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/adapter/cache"
	"rfprag/internal/adapter/chunker"
	"rfprag/internal/adapter/embedding"
	"rfprag/internal/adapter/extract"
	"rfprag/internal/adapter/fs"
	"rfprag/internal/adapter/llm"
	"rfprag/internal/adapter/store"
	"rfprag/internal/adapter/vectorindex"
	"rfprag/internal/adapter/writer"
	"rfprag/internal/port"
	"rfprag/internal/retry"
	"rfprag/internal/usecase"
)

// app holds the services one command invocation works with.
type app struct {
	cfg      *config.Config
	store    *store.BoltStore
	index    *vectorindex.Index
	source   *fs.DirectorySource
	embedder port.EmbeddingService
	ingest   *usecase.IngestUseCase
	retrieve *usecase.RetrieveUseCase
	generate *usecase.GenerateUseCase
}

// openApp opens the index and wires every use case. withModel is false for
// commands that never call the language model, so they work without
// credentials.
func openApp(withModel bool) (*app, error) {
	cfg := GetConfig()
	dir := GetRootDir()

	if err := config.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create .rfprag directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	a, err := wire(cfg, dir, st, withModel)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func wire(cfg *config.Config, dir string, st *store.BoltStore, withModel bool) (*app, error) {
	rebuilt, reason, err := st.Prepare(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare index: %w", err)
	}
	if rebuilt {
		log.Warn().Str("reason", reason).Msg("index cleared, re-run `rfprag index` for every project")
	}

	service, err := newEmbeddingService(cfg)
	if err != nil {
		return nil, err
	}

	index := vectorindex.New(service.Dimension(), st)
	data, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if err := index.Restore(data); err != nil {
		return nil, fmt.Errorf("failed to restore index: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	tokenizer := analyzer.NewTokenizer()
	source := newSource(cfg, dir)
	batch := usecase.NewBatchEmbedder(service, cfg.Embedding.BatchSize, policy, log, mets)

	a := &app{
		cfg:      cfg,
		store:    st,
		index:    index,
		source:   source,
		embedder: service,
	}

	a.ingest = usecase.NewIngestUseCase(
		source,
		extract.NewRegistry(),
		chunker.NewTextChunker(cfg.Chunking.MaxTokens, cfg.Chunking.OverlapTokens, tokenizer),
		batch,
		index,
		st,
		log,
		mets,
	)

	queries := cache.NewCachedEmbedder(batch, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL), mets.RecordCacheLookup)
	a.retrieve = usecase.NewRetrieveUseCase(queries, index, tokenizer, usecase.RetrieveOptions{
		Candidates: cfg.Retrieve.Candidates,
		MinScore:   cfg.Retrieve.MinScore,
	}, log, mets)

	if withModel {
		model, err := newLLM(cfg)
		if err != nil {
			return nil, err
		}
		a.generate = usecase.NewGenerateUseCase(model, a.retrieve, source,
			newDraftWriter(cfg, dir),
			usecase.GenerateOptions{
				Chat: port.ChatOptions{
					MaxTokens:   cfg.LLM.MaxTokens,
					Temperature: cfg.LLM.Temperature,
				},
				Retry:         policy,
				TokenBudget:   cfg.Retrieve.TokenBudget,
				SummaryTokens: cfg.Draft.SummaryTokens,
				Sections:      cfg.Draft.Sections,
			}, log, mets)
	}

	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newSource(cfg *config.Config, dir string) *fs.DirectorySource {
	walker := fs.NewWalker(cfg.Sources.Includes, cfg.Sources.Excludes)
	return fs.NewDirectorySource(config.Resolve(dir, cfg.Sources.Root), walker)
}

func newEmbeddingService(cfg *config.Config) (port.EmbeddingService, error) {
	ec := embedding.Config{
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimension:         cfg.Embedding.Dimension,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}

	var (
		service port.EmbeddingService
		err     error
	)
	switch cfg.Embedding.Provider {
	case "openai":
		service, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, ec)
	case "ollama":
		service, err = embedding.NewOllamaEmbedder(ec)
	case "compatible":
		service, err = embedding.NewOpenAICompatibleEmbedder(ec)
	case "hash", "":
		service = embedding.NewHashEmbedder(cfg.Embedding.Dimension, analyzer.NewTokenizer())
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return service, nil
}

func newLLM(cfg *config.Config) (port.LLM, error) {
	switch cfg.LLM.Provider {
	case "openai":
		model, err := llm.NewOpenAIFromEnv(cfg.LLM.APIKeyEnv, llm.Config{
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Timeout:           cfg.LLM.Timeout,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		return model, nil
	case "echo", "":
		return llm.Echo{}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

func newDraftWriter(cfg *config.Config, dir string) port.DraftWriter {
	return writer.NewMarkdownWriter(config.Resolve(dir, cfg.Draft.OutputDir))
}
