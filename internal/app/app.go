// Package app wires configuration into a running assistant.  Both binaries
// build through it so the HTTP server and the terminal chat behave the same.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"discharge-assistant/internal/audit"
	"discharge-assistant/internal/config"
	"discharge-assistant/internal/core"
	"discharge-assistant/internal/db"
	"discharge-assistant/internal/directory"
	"discharge-assistant/internal/llm"
	"discharge-assistant/internal/logging"
	"discharge-assistant/internal/metrics"
	"discharge-assistant/internal/retriever"
	"discharge-assistant/internal/websearch"
)

// App holds the assembled components.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.TurnMetrics
	Directory    *directory.Directory
	Orchestrator *core.Orchestrator

	closers []func() error
}

// Build assembles the assistant from cfg.  Optional backends (Postgres,
// Chroma, Redis) are only used when configured.  Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Metrics = metrics.NewTurnMetrics(a.Registry)

	recorders := audit.Multi{audit.NewLogRecorder(logger)}

	var source directory.Source = directory.FileSource{Path: cfg.PatientsFile}
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := db.Migrate(ctx, conn); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		source = db.NewRepository(conn)
		recorders = append(recorders, db.NewAuditStore(conn, cfg.AuditNotifyChannel, logger))
		logger.Info("patient directory backed by postgres")
	} else {
		logger.Info("patient directory backed by file", zap.String("path", cfg.PatientsFile))
	}
	a.Directory = directory.New(source, recorders, logger)

	client := llm.NewOpenAIClient(llm.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.OpenAIChatModel,
		EmbeddingModel: cfg.OpenAIEmbeddingModel,
	})

	docs, err := a.buildRetriever(ctx, client)
	if err != nil {
		a.Close()
		return nil, err
	}

	var web websearch.Provider = websearch.NewTavily(cfg.TavilyAPIKey, cfg.TavilyBaseURL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		a.closers = append(a.closers, rdb.Close)
		web = websearch.NewCached(web, rdb, cfg.WebCacheTTL, logger)
	}

	gatherer := core.NewGatherer(docs, logger)
	gatherer.TopK = cfg.RetrieverTopK
	gatherer.MaxChars = cfg.EvidenceMaxChars
	gatherer.Timeout = cfg.CallTimeout
	gatherer.Metrics = a.Metrics

	composer := core.NewComposer(client, web, recorders, logger)
	composer.Timeout = cfg.CallTimeout
	composer.Metrics = a.Metrics

	a.Orchestrator = core.NewOrchestrator(core.Deps{
		Classifier: core.NewKeywordClassifier(cfg.NameTriggers, 3),
		Patients:   a.Directory,
		Gatherer:   gatherer,
		Composer:   composer,
		Metrics:    a.Metrics,
		Logger:     logger,
	})
	return a, nil
}

// buildRetriever returns the Chroma retriever when CHROMA_URL is set and an
// in-memory store over DOCS_DIR otherwise.
func (a *App) buildRetriever(ctx context.Context, embedder retriever.Embedder) (core.Retriever, error) {
	cfg := a.Config
	if cfg.ChromaURL != "" {
		ch, err := retriever.NewChroma(retriever.ChromaConfig{URL: cfg.ChromaURL, CollectionName: cfg.ChromaCollection}, embedder, a.Logger)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("retriever backed by chroma", zap.String("url", cfg.ChromaURL), zap.String("collection", cfg.ChromaCollection))
		return ch, nil
	}

	store := retriever.NewMemoryStore(embedder)
	if cfg.DocsDir != "" {
		n, err := retriever.IngestDir(ctx, store, cfg.DocsDir, retriever.IngestOptions{})
		if err != nil {
			// An empty store still answers, through the web fallback.
			a.Logger.Warn("ingest reference documents", zap.String("dir", cfg.DocsDir), zap.Error(err))
		} else {
			a.Logger.Info("reference documents indexed", zap.String("dir", cfg.DocsDir), zap.Int("passages", n))
		}
	}
	return store, nil
}

// WatchPatients reloads the file-backed directory on change.  It is a no-op
// for the Postgres directory or when PATIENTS_WATCH is off.
func (a *App) WatchPatients(ctx context.Context) error {
	if a.Config.DatabaseURL != "" || !a.Config.PatientsWatch {
		return nil
	}
	return directory.Watch(ctx, a.Directory, a.Config.PatientsFile)
}

// Close releases backend connections.
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
