// Package main implements a terminal chat CLI: ask a question in the voice
// of a podcast speaker and stream the answer to stdout.
//
//	chat -speaker "Adam Stacoviak" "what do you think of static sites?"
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

	"github.com/podseek/podseek/engine/chat"
	"github.com/podseek/podseek/engine/embed"
	"github.com/podseek/podseek/engine/search"
	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/pkg/ollama"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	var (
		speaker    = flag.String("speaker", "", "speaker to answer as (required)")
		qdrantURL  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "podseek"), "qdrant collection")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
		embedModel = flag.String("embed-model", envOr("EMBED_MODEL", "intfloat/e5-small-v2"), "embedding model")
		chatModel  = flag.String("chat-model", envOr("CHAT_MODEL", "llama3.1"), "completion model")
		contextN   = flag.Int("context", chat.DefaultContextSize, "grounding snippets to retrieve")
	)
	flag.Parse()

	query := strings.Join(flag.Args(), " ")
	if *speaker == "" || query == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -speaker <name> [flags] <question>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := semantic.New(*qdrantURL, *collection)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	embedder := embed.New(ollama.NewEmbedClient(*ollamaURL, *embedModel), embed.DefaultOptions())
	chatter := chat.New(
		search.New(embedder, store),
		ollama.NewChatClient(*ollamaURL, *chatModel),
		chat.WithContextSize(*contextN),
	)

	err = chatter.Respond(ctx, query, *speaker, func(token string) error {
		_, err := fmt.Print(token)
		return err
	})
	if err != nil {
		fmt.Fprintln(os.Stderr)
		fatal(err)
	}
	fmt.Println()
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
