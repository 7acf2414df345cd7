// Package main implements the podseek API server: semantic search over
// podcast snippets, speaker chat, and reindex triggering.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/podseek/podseek/engine/chat"
	"github.com/podseek/podseek/engine/embed"
	"github.com/podseek/podseek/engine/index"
	"github.com/podseek/podseek/engine/search"
	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/pkg/metrics"
	"github.com/podseek/podseek/pkg/mid"
	"github.com/podseek/podseek/pkg/natsutil"
	"github.com/podseek/podseek/pkg/ollama"
	"github.com/podseek/podseek/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	QdrantURL   string
	Collection  string
	OllamaURL   string
	EmbedModel  string
	ChatModel   string
	NATSURL     string
	CORSOrigin  string
	RateLimit   int
	RatePeriod  time.Duration
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "podseek"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "intfloat/e5-small-v2"),
		ChatModel:  envOr("CHAT_MODEL", "llama3.1"),
		NATSURL:    envOr("NATS_URL", nats.DefaultURL),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		RateLimit:  envOrInt("RATE_LIMIT", 60),
		RatePeriod: time.Minute,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedder := embed.New(ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel), embed.DefaultOptions())
	searcher := search.New(embedder, store)
	chatter := chat.New(searcher, ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel))

	// The reindex endpoint degrades to 503 when NATS is unreachable; search
	// and chat don't depend on it.
	nc, err := natsutil.Connect(cfg.NATSURL, "podseek-api")
	if err != nil {
		logger.Warn("nats unavailable, reindex disabled", "err", err)
		nc = nil
	} else {
		defer nc.Close()
	}

	reg := metrics.New()
	app := &application{
		searcher: searcher,
		chatter:  chatter,
		store:    store,
		nc:       nc,
		log:      logger,

		searches:   reg.Counter("search_requests_total", "search requests served"),
		chats:      reg.Counter("chat_requests_total", "chat requests served"),
		chatTokens: reg.Counter("chat_tokens_streamed_total", "tokens streamed to chat clients"),
		reindexes:  reg.Counter("reindex_requests_total", "reindex requests published"),
		latency:    reg.Histogram("http_request_seconds", "request duration", nil),
	}

	// Only the endpoints that cost an embedding or a completion are rate
	// limited; listings and health stay cheap and unthrottled.
	limited := mid.RateLimit(resilience.NewWindow(cfg.RateLimit, cfg.RatePeriod))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", app.handleHealth)
	mux.Handle("POST /api/search", limited(http.HandlerFunc(app.handleSearch)))
	mux.HandleFunc("GET /api/podcasts", app.handlePodcasts)
	mux.HandleFunc("GET /api/speakers", app.handleSpeakers)
	mux.Handle("POST /api/chat", limited(http.HandlerFunc(app.handleChat)))
	mux.HandleFunc("POST /api/reindex", app.handleReindex)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("podseek-api"),
		mid.CORS(cfg.CORSOrigin),
		app.observe,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// searcher, chatter, and distincter are the narrow surfaces the handlers
// need; tests substitute stubs.
type searcher interface {
	Search(ctx context.Context, query string, limit int, filters map[string]string) ([]semantic.Hit, error)
}

type chatter interface {
	Respond(ctx context.Context, query, speaker string, onToken func(string) error) error
}

type distincter interface {
	DistinctPayload(ctx context.Context, field string) ([]string, error)
}

// application bundles the handlers' dependencies.
type application struct {
	searcher searcher
	chatter  chatter
	store    distincter
	nc       *nats.Conn
	log      *slog.Logger

	searches   *metrics.Counter
	chats      *metrics.Counter
	chatTokens *metrics.Counter
	reindexes  *metrics.Counter
	latency    *metrics.Histogram
}

func (app *application) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		app.latency.Since(start)
	})
}

func (app *application) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query   string            `json:"query"`
	Limit   int               `json:"limit,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []semantic.Hit `json:"results"`
	Count   int            `json:"count"`
}

func (app *application) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hits, err := app.searcher.Search(r.Context(), req.Query, req.Limit, req.Filters)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "query is required")
		case errors.Is(err, search.ErrInvalidFilterField):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			app.log.Error("search failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	app.searches.Inc()
	if hits == nil {
		hits = []semantic.Hit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits, Count: len(hits)})
}

func (app *application) handlePodcasts(w http.ResponseWriter, r *http.Request) {
	app.handleDistinct(w, r, "podcast_name", "podcasts")
}

func (app *application) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	app.handleDistinct(w, r, "speaker", "speakers")
}

func (app *application) handleDistinct(w http.ResponseWriter, r *http.Request, field, key string) {
	values, err := app.store.DistinctPayload(r.Context(), field)
	if err != nil {
		app.log.Error("distinct scan failed", "field", field, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{key: values})
}

// ChatRequest is the JSON body for POST /api/chat. The response streams
// plain-text tokens as they are generated.
type ChatRequest struct {
	Query   string `json:"query"`
	Speaker string `json:"speaker"`
}

func (app *application) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	started := false
	err := app.chatter.Respond(r.Context(), req.Query, req.Speaker, func(token string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := fmt.Fprint(w, token); err != nil {
			return err
		}
		app.chatTokens.Inc()
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Once tokens are on the wire the status is already committed; the
		// stream just ends early.
		if started {
			app.log.Error("chat stream aborted", "err", err)
			return
		}
		switch {
		case errors.Is(err, chat.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "query is required")
		case errors.Is(err, chat.ErrEmptySpeaker):
			writeError(w, http.StatusBadRequest, "speaker is required")
		default:
			app.log.Error("chat failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	app.chats.Inc()
}

// ReindexRequest is the JSON body for POST /api/reindex.
type ReindexRequest struct {
	Podcasts []string `json:"podcasts,omitempty"`
}

func (app *application) handleReindex(w http.ResponseWriter, r *http.Request) {
	if app.nc == nil {
		writeError(w, http.StatusServiceUnavailable, "reindexing unavailable")
		return
	}

	var req ReindexRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	err := natsutil.Publish(r.Context(), app.nc, index.SyncSubject, index.SyncRequest{Podcasts: req.Podcasts})
	if err != nil {
		app.log.Error("reindex publish failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	app.reindexes.Inc()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
