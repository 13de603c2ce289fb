package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"ragchain/config"
	"ragchain/internal/adapter/analyzer"
	"ragchain/internal/adapter/cache"
	"ragchain/internal/adapter/embedding"
	"ragchain/internal/adapter/linker"
	"ragchain/internal/adapter/llm"
	"ragchain/internal/adapter/retriever"
	"ragchain/internal/adapter/store"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// engine is a retrieval stack assembled from config together with the
// resources it owns.
type engine struct {
	retrieval port.Retrieval
	hyde      *retriever.HyDERetrieval // nil unless HyDE is enabled
	index     *store.BoltStore
	linker    port.Linker
	// rebuilt is set when an ingest cleared an index built with other settings.
	rebuilt string
}

func (e *engine) Close() error {
	var err error
	if e.linker != nil {
		err = multierr.Append(err, e.linker.Close())
	}
	if e.index != nil {
		err = multierr.Append(err, e.index.Close())
	}
	return err
}

type engineOptions struct {
	hyde bool
	// forIngest clears an outdated index instead of refusing to open it.
	forIngest bool
}

// openEngine builds the configured engine for the project at dir.
func openEngine(cfg *config.Config, dir string, opts engineOptions, logger *zap.Logger) (_ *engine, err error) {
	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &engine{}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	e.index, err = store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	migration, err := e.index.CheckMigration(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild {
		if !opts.forIngest {
			return nil, domain.Configurationf("index was built with other settings (%s); run 'ragchain ingest' to rebuild it", migration.Reason)
		}
		if err := e.index.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear index: %w", err)
		}
		e.rebuilt = migration.Reason
	}

	e.linker, err = linker.New(cfg.Linker, dir, logger)
	if err != nil {
		return nil, err
	}

	tokenizer := analyzer.NewTokenizer()
	var lexical, semantic port.Retrieval
	if cfg.Retrieve.Backend == "bm25" || cfg.Retrieve.Backend == "hybrid" {
		lexical = retriever.NewBM25Retrieval(e.index, e.linker, tokenizer, logger)
	}
	if cfg.Retrieve.Backend == "semantic" || cfg.Retrieve.Backend == "hybrid" {
		semantic, err = openSemantic(cfg, e, opts.forIngest, logger)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case lexical != nil && semantic != nil:
		e.retrieval = retriever.NewHybridRetrieval(lexical, semantic, cfg.Retrieve.RRFK, cfg.Retrieve.BM25Weight, logger)
	case semantic != nil:
		e.retrieval = semantic
	default:
		e.retrieval = lexical
	}

	if opts.hyde {
		chat, err := llm.FromConfig(cfg.HyDE)
		if err != nil {
			return nil, err
		}
		e.hyde = retriever.NewHyDERetrieval(e.retrieval, chat,
			retriever.WithSystemPrompt(cfg.HyDE.SystemPrompt),
			retriever.WithModel(cfg.HyDE.Model),
			retriever.WithTemperature(cfg.HyDE.Temperature),
			retriever.WithMaxTokens(cfg.HyDE.MaxTokens),
			retriever.WithLogger(logger),
		)
		e.retrieval = e.hyde
	}

	if cfg.Retrieve.CacheSize > 0 {
		e.retrieval = cache.NewCachedRetrieval(e.retrieval,
			cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL), logger)
	}
	return e, nil
}

func openSemantic(cfg *config.Config, e *engine, forIngest bool, logger *zap.Logger) (port.Retrieval, error) {
	selector, err := embedding.FromConfig(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	handle, err := selector.Get()
	if err != nil {
		return nil, err
	}

	vectors, err := store.NewBoltVectorStore(e.index.DB(), handle.Dimension())
	if errors.Is(err, domain.ErrConfiguration) && forIngest {
		logger.Warn("stored vectors do not match the embedding width, clearing index", zap.Error(err))
		if err := e.index.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear index: %w", err)
		}
		e.rebuilt = "embedding dimension changed"
		vectors, err = store.NewBoltVectorStore(e.index.DB(), handle.Dimension())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return retriever.NewSemanticRetrieval(vectors, handle, e.linker, logger), nil
}

func resolvePath(args []string) (string, error) {
	if len(args) == 0 {
		return GetRootDir(), nil
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return path, nil
}
