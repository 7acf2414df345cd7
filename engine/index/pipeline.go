// Package index builds and maintains the snippet collection: it walks a
// transcript corpus, skips snippets that are already stored, embeds the rest,
// and upserts them in batches.
package index

import (
	"context"
	"log/slog"

	"github.com/podseek/podseek/engine/snippet"
	"github.com/podseek/podseek/pkg/fn"
)

// DefaultUpsertBatchSize bounds a single upsert request.
const DefaultUpsertBatchSize = 500

// Storer is the vector store surface the pipeline needs.
type Storer interface {
	ScrollIDs(ctx context.Context) ([]string, error)
	UpsertSnippets(ctx context.Context, items []snippet.Snippet) error
}

// Embedder turns snippets into vectors, position-aligned with its input.
type Embedder interface {
	EmbedSnippets(ctx context.Context, items []snippet.Snippet) ([][]float32, error)
}

// Walker emits every snippet of the corpus, restricted to the given podcasts
// when the slice is non-empty.
type Walker func(podcasts []string, emit func(snippet.Snippet) error) error

// Deps wires the pipeline to its collaborators.
type Deps struct {
	Walk     Walker
	Store    Storer
	Embedder Embedder
	Log      *slog.Logger
	// UpsertBatchSize defaults to DefaultUpsertBatchSize when zero.
	UpsertBatchSize int
}

// Pipeline synchronizes the corpus into the store. Safe to run repeatedly:
// snippets are keyed by content identity, so a second run over an unchanged
// corpus uploads nothing.
type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.UpsertBatchSize <= 0 {
		deps.UpsertBatchSize = DefaultUpsertBatchSize
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Pipeline{deps: deps}
}

// Sync indexes the whole corpus. Returns the number of snippets uploaded.
func (p *Pipeline) Sync(ctx context.Context) (int, error) {
	return p.SyncPodcasts(ctx, nil)
}

// SyncPodcasts indexes only the named podcasts; nil means all of them.
func (p *Pipeline) SyncPodcasts(ctx context.Context, podcasts []string) (int, error) {
	run := fn.Then(
		fn.Then(
			fn.TracedStage("index.collect", p.collect),
			fn.TracedStage("index.dedup", p.dropStored),
		),
		fn.Then(
			fn.TracedStage("index.embed", p.embed),
			fn.TracedStage("index.upsert", p.upsert),
		),
	)
	return run(ctx, podcasts).Unwrap()
}

// collect materializes the corpus walk.
func (p *Pipeline) collect(_ context.Context, podcasts []string) fn.Result[[]snippet.Snippet] {
	var items []snippet.Snippet
	err := p.deps.Walk(podcasts, func(s snippet.Snippet) error {
		items = append(items, s)
		return nil
	})
	if err != nil {
		return fn.Errf[[]snippet.Snippet]("index: walk corpus: %w", err)
	}
	p.deps.Log.Info("corpus collected", "snippets", len(items))
	return fn.Ok(items)
}

// dropStored removes snippets whose point already exists in the store, plus
// in-batch duplicates (the same turn can appear in more than one file).
func (p *Pipeline) dropStored(ctx context.Context, items []snippet.Snippet) fn.Result[[]snippet.Snippet] {
	ids, err := p.deps.Store.ScrollIDs(ctx)
	if err != nil {
		return fn.Errf[[]snippet.Snippet]("index: scan existing points: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	fresh := fn.Filter(items, func(s snippet.Snippet) bool {
		id := s.PointID()
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		return true
	})
	p.deps.Log.Info("existence scan done",
		"corpus", len(items),
		"stored", len(ids),
		"fresh", len(fresh),
	)
	return fn.Ok(fresh)
}

// embed attaches vectors to fresh snippets by position.
func (p *Pipeline) embed(ctx context.Context, items []snippet.Snippet) fn.Result[[]snippet.Snippet] {
	if len(items) == 0 {
		return fn.Ok(items)
	}
	vecs, err := p.deps.Embedder.EmbedSnippets(ctx, items)
	if err != nil {
		return fn.Errf[[]snippet.Snippet]("index: embed: %w", err)
	}
	if len(vecs) != len(items) {
		return fn.Errf[[]snippet.Snippet]("index: embed: got %d vectors for %d snippets", len(vecs), len(items))
	}
	for i := range items {
		items[i].Embedding = vecs[i]
	}
	return fn.Ok(items)
}

// upsert writes embedded snippets in batches and returns the total count.
func (p *Pipeline) upsert(ctx context.Context, items []snippet.Snippet) fn.Result[int] {
	for _, batch := range fn.Chunk(items, p.deps.UpsertBatchSize) {
		if err := p.deps.Store.UpsertSnippets(ctx, batch); err != nil {
			return fn.Errf[int]("index: upsert batch: %w", err)
		}
		p.deps.Log.Info("batch upserted", "size", len(batch))
	}
	return fn.Ok(len(items))
}
