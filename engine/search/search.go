// Package search answers semantic queries over the snippet index: embed the
// query, run filtered similarity search, return scored snippets.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/engine/snippet"
)

// DefaultLimit is the number of results returned when the caller asks for
// zero or fewer.
const DefaultLimit = 10

// Sentinel errors for query validation failures.
var (
	ErrInvalidFilterField = errors.New("invalid filter field")
	ErrEmptyQuery         = errors.New("empty query")
)

// FieldError wraps a sentinel with the offending filter key.
type FieldError struct {
	Field   string
	Wrapped error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("search: %s: %q", e.Wrapped, e.Field)
}

func (e *FieldError) Unwrap() error { return e.Wrapped }

// QueryEmbedder embeds query-side text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the similarity-search surface.
type Store interface {
	SearchFiltered(ctx context.Context, vector []float32, limit int, filters map[string]string) ([]semantic.Hit, error)
}

// Searcher runs validated semantic queries.
type Searcher struct {
	embedder QueryEmbedder
	store    Store
}

func New(embedder QueryEmbedder, store Store) *Searcher {
	return &Searcher{embedder: embedder, store: store}
}

// Search returns up to limit snippets best matching the query, restricted by
// filters. Validation runs before any model or store call, so a bad request
// never costs an embedding.
func (s *Searcher) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]semantic.Hit, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	for field := range filters {
		if !snippet.FilterFields[field] {
			return nil, &FieldError{Field: field, Wrapped: ErrInvalidFilterField}
		}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	hits, err := s.store.SearchFiltered(ctx, vec, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}
