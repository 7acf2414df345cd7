// Package chat answers a question in the voice of a podcast speaker,
// grounded on that speaker's own past snippets from the index.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/pkg/fn"
)

// DefaultContextSize is how many of the speaker's snippets ground the answer.
const DefaultContextSize = 3

var (
	ErrEmptySpeaker = errors.New("empty speaker")
	ErrEmptyQuery   = errors.New("empty query")
)

// Retriever finds relevant snippets. Satisfied by search.Searcher.
type Retriever interface {
	Search(ctx context.Context, query string, limit int, filters map[string]string) ([]semantic.Hit, error)
}

// Completer streams a model completion token by token. Satisfied by
// ollama.ChatClient.
type Completer interface {
	StreamComplete(ctx context.Context, systemPrompt, userPrompt string, onToken func(string) error) error
}

// Chatter retrieves speaker context and streams a persona answer.
type Chatter struct {
	retriever   Retriever
	completer   Completer
	contextSize int
	retry       fn.RetryOpts
}

// Option configures a Chatter.
type Option func(*Chatter)

// WithContextSize overrides the number of grounding snippets.
func WithContextSize(n int) Option {
	return func(c *Chatter) {
		if n > 0 {
			c.contextSize = n
		}
	}
}

// WithRetry overrides the completion retry policy.
func WithRetry(opts fn.RetryOpts) Option {
	return func(c *Chatter) { c.retry = opts }
}

func New(retriever Retriever, completer Completer, opts ...Option) *Chatter {
	c := &Chatter{
		retriever:   retriever,
		completer:   completer,
		contextSize: DefaultContextSize,
		retry:       fn.DefaultRetry,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Respond streams the answer through onToken. Retrieval is always filtered
// to the requested speaker. The completion is retried with backoff, but only
// while no token has reached the caller; once output has started a failure
// is terminal, otherwise the caller would see duplicated text.
func (c *Chatter) Respond(ctx context.Context, query, speaker string, onToken func(string) error) error {
	if speaker == "" {
		return ErrEmptySpeaker
	}
	if query == "" {
		return ErrEmptyQuery
	}

	hits, err := c.retriever.Search(ctx, query, c.contextSize, map[string]string{"speaker": speaker})
	if err != nil {
		return fmt.Errorf("chat: retrieve context: %w", err)
	}

	system := personaPrompt(speaker)
	user := userPrompt(query, hits)

	emitted := false
	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[struct{}] {
		if err := c.completer.StreamComplete(ctx, system, user, func(token string) error {
			emitted = true
			return onToken(token)
		}); err != nil {
			if emitted {
				return fn.Err[struct{}](fn.Permanent(err))
			}
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if _, err := result.Unwrap(); err != nil {
		return fmt.Errorf("chat: complete: %w", err)
	}
	return nil
}

func personaPrompt(speaker string) string {
	return fmt.Sprintf("Your name is %s. Your goal is to answer a specific question from a user from your perspective. "+
		"You will be given some context of things you have said in the past related to the question. "+
		"Answer the question using information in the context. Your answer should be 100 words or less. "+
		"If nothing in the context is related to the question, then respond with 'I'm not sure', "+
		"followed by a short summary of the context that is related to the question.", speaker)
}

func userPrompt(query string, hits []semantic.Hit) string {
	lines := make([]string, len(hits))
	for i, h := range hits {
		s := h.Snippet
		lines[i] = fmt.Sprintf("%s (episode %d of %s): %s", s.Speaker, s.EpisodeNumber, s.PodcastName, s.Text)
	}
	var b strings.Builder
	b.WriteString("CONTEXT\n---------\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nQUESTION\n--------\n")
	b.WriteString(query)
	return b.String()
}
