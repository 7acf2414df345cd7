// Package corpus walks a transcript corpus: a directory tree whose top-level
// directories are podcast names and whose files are episodes named with a
// trailing `-N` episode number.
package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/podseek/podseek/engine/snippet"
)

// DefaultIgnore lists directory names skipped during the walk.
var DefaultIgnore = []string{".git", ".github", "scripts"}

// WalkOptions configures a corpus walk.
type WalkOptions struct {
	// Podcasts restricts the walk to the named shows; nil walks everything.
	Podcasts []string
	// Ignore overrides DefaultIgnore when non-nil.
	Ignore []string
	// MinWords is passed through to the parser; <= 0 selects the default.
	MinWords int
	Logger   *slog.Logger
}

// Walk streams every parseable snippet under root through emit, podcast by
// podcast, episode by episode. Per-file failures (unreadable file, filename
// without a trailing episode number) are logged and skipped; the walk only
// fails on an unreadable root or an emit error.
func Walk(root string, opts WalkOptions, emit func(snippet.Snippet) error) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	ignored := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ignored[name] = true
	}
	var wanted map[string]bool
	if opts.Podcasts != nil {
		wanted = make(map[string]bool, len(opts.Podcasts))
		for _, name := range opts.Podcasts {
			wanted[name] = true
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("corpus: read root %s: %w", root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || ignored[entry.Name()] {
			continue
		}
		if wanted != nil && !wanted[entry.Name()] {
			continue
		}

		podcast := entry.Name()
		log.Info("processing podcast", "podcast", podcast)

		if err := walkPodcast(filepath.Join(root, podcast), podcast, opts.MinWords, log, emit); err != nil {
			return err
		}
	}
	return nil
}

func walkPodcast(dir, podcast string, minWords int, log *slog.Logger, emit func(snippet.Snippet) error) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Error("skipping unreadable podcast directory", "podcast", podcast, "error", err)
		return nil
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		episode, err := episodeNumber(f.Name())
		if err != nil {
			log.Error("skipping episode file", "file", f.Name(), "error", err)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			log.Error("skipping episode file", "file", f.Name(), "error", err)
			continue
		}

		for _, s := range snippet.ParseEpisode(string(data), episode, podcast, minWords) {
			if err := emit(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// episodeNumber parses the trailing `-N` numeral off a filename stem, e.g.
// "go-time-271.md" -> 271.
func episodeNumber(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	idx := strings.LastIndexByte(stem, '-')
	if idx < 0 || idx == len(stem)-1 {
		return 0, fmt.Errorf("no trailing episode number in %q", filename)
	}
	n, err := strconv.Atoi(stem[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("bad episode number in %q: %w", filename, err)
	}
	return n, nil
}
