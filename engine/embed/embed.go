// Package embed maps snippet and query text to vectors through an external
// encoder, applying the asymmetric prefix scheme and unit-length scaling
// required for dot-product similarity against the stored index.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/podseek/podseek/engine/snippet"
	"github.com/podseek/podseek/pkg/fn"
)

// Encoder is the external embedding capability: one fixed-dimension vector
// per input string, in input order.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	// DefaultQueryPrefix and DefaultPassagePrefix follow the e5 family's
	// asymmetric scheme. Query and index time must use the same adapter
	// configuration or relevance silently degrades.
	DefaultQueryPrefix   = "query: "
	DefaultPassagePrefix = "passage: "
	// DefaultBatchSize bounds per-request encode size.
	DefaultBatchSize = 700
)

// Options configures an Adapter.
type Options struct {
	QueryPrefix   string
	PassagePrefix string
	BatchSize     int
	// Normalize scales every vector to unit length. Required whenever the
	// store's distance is a dot product; see DefaultOptions.
	Normalize bool
}

// DefaultOptions returns the configuration the index was built with.
func DefaultOptions() Options {
	return Options{
		QueryPrefix:   DefaultQueryPrefix,
		PassagePrefix: DefaultPassagePrefix,
		BatchSize:     DefaultBatchSize,
		Normalize:     true,
	}
}

// Adapter applies the prefix scheme and normalization around an Encoder.
type Adapter struct {
	enc  Encoder
	opts Options
}

// New creates an Adapter. Zero-valued option fields fall back to defaults,
// except Normalize which is taken as given.
func New(enc Encoder, opts Options) *Adapter {
	if opts.QueryPrefix == "" {
		opts.QueryPrefix = DefaultQueryPrefix
	}
	if opts.PassagePrefix == "" {
		opts.PassagePrefix = DefaultPassagePrefix
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Adapter{enc: enc, opts: opts}
}

// EmbedQuery embeds a single query-side text.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.enc.Encode(ctx, []string{a.opts.QueryPrefix + text})
	if err != nil {
		return nil, fmt.Errorf("embed: query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed: query: got %d vectors", len(vecs))
	}
	if a.opts.Normalize {
		l2Normalize(vecs[0])
	}
	return vecs[0], nil
}

// EmbedSnippets embeds the passage-side texts of items in batches. The
// returned slice is position-aligned with items: vector i belongs to
// items[i]. Callers must zip by position, not by identity.
func (a *Adapter) EmbedSnippets(ctx context.Context, items []snippet.Snippet) ([][]float32, error) {
	texts := fn.Map(items, func(s snippet.Snippet) string {
		return a.opts.PassagePrefix + s.Text
	})

	out := make([][]float32, 0, len(texts))
	for _, batch := range fn.Chunk(texts, a.opts.BatchSize) {
		vecs, err := a.enc.Encode(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed: batch at %d: %w", len(out), err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embed: batch at %d: got %d vectors for %d texts", len(out), len(vecs), len(batch))
		}
		if a.opts.Normalize {
			for _, v := range vecs {
				l2Normalize(v)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// l2Normalize scales v to unit length in place. Zero vectors are left alone.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
