package corpus

import (
	"context"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
)

// Fetch clones the transcript repository into dir, replacing any prior
// checkout. The corpus is ephemeral: it is re-fetched per indexing run and
// never part of persisted state.
func Fetch(ctx context.Context, gitURL, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("corpus: remove %s: %w", dir, err)
	}
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   gitURL,
		Depth: 1,
	})
	if err != nil {
		return fmt.Errorf("corpus: clone %s: %w", gitURL, err)
	}
	return nil
}
