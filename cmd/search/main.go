// Package main implements a one-shot semantic search CLI:
//
//	search -filter speaker="Mat Ryer" "why do you like channels?"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/podseek/podseek/engine/embed"
	"github.com/podseek/podseek/engine/search"
	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/pkg/ollama"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	filters := map[string]string{}
	var (
		qdrantURL  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "podseek"), "qdrant collection")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
		embedModel = flag.String("embed-model", envOr("EMBED_MODEL", "intfloat/e5-small-v2"), "embedding model")
		limit      = flag.Int("limit", search.DefaultLimit, "maximum results")
	)
	flag.Func("filter", "metadata filter as field=value, repeatable", func(s string) error {
		field, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", s)
		}
		filters[field] = value
		return nil
	})
	flag.Parse()

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: search [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := semantic.New(*qdrantURL, *collection)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	embedder := embed.New(ollama.NewEmbedClient(*ollamaURL, *embedModel), embed.DefaultOptions())
	hits, err := search.New(embedder, store).Search(ctx, query, *limit, filters)
	if err != nil {
		fatal(err)
	}

	if len(hits) == 0 {
		fmt.Println("no results")
		return
	}
	for i, h := range hits {
		s := h.Snippet
		fmt.Printf("%2d. [%.3f] %s, %s #%d\n", i+1, h.Score, s.Speaker, s.PodcastName, s.EpisodeNumber)
		fmt.Printf("    %s\n", s.Text)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
