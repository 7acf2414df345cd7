// Package main implements the podseek indexer: it fetches the transcript
// corpus, parses it into speaker snippets, embeds what is new, and writes it
// to the vector store. With -listen it stays up and reindexes on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/podseek/podseek/engine/corpus"
	"github.com/podseek/podseek/engine/embed"
	"github.com/podseek/podseek/engine/index"
	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/engine/snippet"
	"github.com/podseek/podseek/pkg/metrics"
	"github.com/podseek/podseek/pkg/natsutil"
	"github.com/podseek/podseek/pkg/ollama"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var (
		corpusDir   = flag.String("corpus", "./transcripts", "local transcript checkout")
		gitURL      = flag.String("git", "https://github.com/thechangelog/transcripts.git", "transcript repository to clone")
		noFetch     = flag.Bool("no-fetch", false, "index the existing checkout without cloning")
		podcasts    = flag.String("podcasts", "", "comma-separated podcast allowlist (empty = all)")
		minWords    = flag.Int("min-words", snippet.DefaultMinWords, "minimum words per snippet")
		qdrantURL   = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "podseek"), "qdrant collection")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
		embedModel  = flag.String("embed-model", envOr("EMBED_MODEL", "intfloat/e5-small-v2"), "embedding model")
		dims        = flag.Int("dims", 384, "embedding dimensions")
		embedBatch  = flag.Int("embed-batch", embed.DefaultBatchSize, "texts per embed request")
		upsertBatch = flag.Int("upsert-batch", index.DefaultUpsertBatchSize, "points per upsert request")
		listen      = flag.Bool("listen", false, "keep running and reindex on NATS requests")
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server (with -listen)")
		metricsPort = flag.Int("metrics-port", 9091, "metrics port (with -listen)")
	)
	flag.Parse()

	if err := run(config{
		corpusDir:   *corpusDir,
		gitURL:      *gitURL,
		noFetch:     *noFetch,
		podcasts:    splitCSV(*podcasts),
		minWords:    *minWords,
		qdrantURL:   *qdrantURL,
		collection:  *collection,
		ollamaURL:   *ollamaURL,
		embedModel:  *embedModel,
		dims:        *dims,
		embedBatch:  *embedBatch,
		upsertBatch: *upsertBatch,
		listen:      *listen,
		natsURL:     *natsURL,
		metricsPort: *metricsPort,
	}, logger); err != nil {
		logger.Error("indexer exited with error", "err", err)
		os.Exit(1)
	}
}

type config struct {
	corpusDir   string
	gitURL      string
	noFetch     bool
	podcasts    []string
	minWords    int
	qdrantURL   string
	collection  string
	ollamaURL   string
	embedModel  string
	dims        int
	embedBatch  int
	upsertBatch int
	listen      bool
	natsURL     string
	metricsPort int
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.noFetch {
		logger.Info("fetching corpus", "url", cfg.gitURL, "dir", cfg.corpusDir)
		if err := corpus.Fetch(ctx, cfg.gitURL, cfg.corpusDir); err != nil {
			return fmt.Errorf("fetch corpus: %w", err)
		}
	}

	store, err := semantic.New(cfg.qdrantURL, cfg.collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, cfg.dims); err != nil {
		return err
	}

	opts := embed.DefaultOptions()
	opts.BatchSize = cfg.embedBatch
	embedder := embed.New(ollama.NewEmbedClient(cfg.ollamaURL, cfg.embedModel), opts)

	reg := metrics.New()
	indexed := reg.Counter("snippets_indexed_total", "snippets written to the store")
	runs := reg.Counter("sync_runs_total", "completed sync runs")
	syncSeconds := reg.Histogram("sync_seconds", "sync duration", nil)

	pipeline := index.New(index.Deps{
		Walk: func(only []string, emit func(snippet.Snippet) error) error {
			walkOpts := corpus.WalkOptions{
				Podcasts: cfg.podcasts,
				MinWords: cfg.minWords,
				Logger:   logger,
			}
			if len(only) > 0 {
				walkOpts.Podcasts = only
			}
			return corpus.Walk(cfg.corpusDir, walkOpts, emit)
		},
		Store:           store,
		Embedder:        embedder,
		Log:             logger,
		UpsertBatchSize: cfg.upsertBatch,
	})

	start := time.Now()
	n, err := pipeline.Sync(ctx)
	if err != nil {
		return err
	}
	indexed.Add(int64(n))
	runs.Inc()
	syncSeconds.Since(start)
	logger.Info("sync complete", "uploaded", n, "elapsed", time.Since(start))

	if !cfg.listen {
		return nil
	}

	nc, err := natsutil.Connect(cfg.natsURL, "podseek-index")
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := pipeline.StartConsumer(ctx, nc)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.metricsPort), Handler: mux}

	go func() {
		logger.Info("indexer listening", "subject", index.SyncSubject, "metrics_port", cfg.metricsPort)
		srv.ListenAndServe()
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
