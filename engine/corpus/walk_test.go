package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/podseek/podseek/engine/snippet"
)

const episodeBody = "**Adam:** Hello there and welcome back to the show everyone, " +
	"this is a nicely long opening line with more than enough words in it to " +
	"clear the minimum word count filter that the parser applies to every turn.\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, root string, opts WalkOptions) []snippet.Snippet {
	t.Helper()
	var out []snippet.Snippet
	err := Walk(root, opts, func(s snippet.Snippet) error {
		out = append(out, s)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return out
}

func TestWalk_EmitsSnippetsPerEpisode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gotime", "go-time-1.md"), episodeBody)
	writeFile(t, filepath.Join(root, "gotime", "go-time-2.md"), episodeBody)
	writeFile(t, filepath.Join(root, "jsparty", "js-party-9.md"), episodeBody)

	got := collect(t, root, WalkOptions{})
	if len(got) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(got))
	}

	episodes := map[int]bool{}
	for _, s := range got {
		episodes[s.EpisodeNumber] = true
	}
	for _, want := range []int{1, 2, 9} {
		if !episodes[want] {
			t.Errorf("episode %d missing from walk output", want)
		}
	}
}

func TestWalk_PodcastFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gotime", "go-time-1.md"), episodeBody)
	writeFile(t, filepath.Join(root, "jsparty", "js-party-2.md"), episodeBody)

	got := collect(t, root, WalkOptions{Podcasts: []string{"gotime"}})
	if len(got) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(got))
	}
	if got[0].PodcastName != "gotime" {
		t.Errorf("podcast = %q", got[0].PodcastName)
	}
}

func TestWalk_IgnoresMetadataDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".github", "workflow-1.md"), episodeBody)
	writeFile(t, filepath.Join(root, "scripts", "build-1.md"), episodeBody)
	writeFile(t, filepath.Join(root, "gotime", "go-time-1.md"), episodeBody)

	got := collect(t, root, WalkOptions{})
	if len(got) != 1 {
		t.Fatalf("expected only the real podcast, got %d snippets", len(got))
	}
}

func TestWalk_SkipsTopLevelFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "not a podcast")
	writeFile(t, filepath.Join(root, "gotime", "go-time-1.md"), episodeBody)

	got := collect(t, root, WalkOptions{})
	if len(got) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(got))
	}
}

func TestWalk_SkipsMalformedFilenames(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gotime", "notes.md"), episodeBody)
	writeFile(t, filepath.Join(root, "gotime", "go-time-abc.md"), episodeBody)
	writeFile(t, filepath.Join(root, "gotime", "go-time-7.md"), episodeBody)

	got := collect(t, root, WalkOptions{})
	if len(got) != 1 {
		t.Fatalf("malformed filenames must be skipped, got %d snippets", len(got))
	}
	if got[0].EpisodeNumber != 7 {
		t.Errorf("episode = %d", got[0].EpisodeNumber)
	}
}

func TestWalk_UnreadableFileDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	// A directory with an episode-shaped name fails os.ReadFile but must not
	// kill the walk.
	if err := os.MkdirAll(filepath.Join(root, "gotime", "go-time-1.md"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "gotime", "go-time-2.md"), episodeBody)

	got := collect(t, root, WalkOptions{})
	if len(got) != 1 {
		t.Fatalf("expected surviving episode only, got %d snippets", len(got))
	}
	if got[0].EpisodeNumber != 2 {
		t.Errorf("episode = %d", got[0].EpisodeNumber)
	}
}

func TestWalk_EmitErrorStopsWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gotime", "go-time-1.md"), episodeBody)

	sentinel := errors.New("stop")
	err := Walk(root, WalkOptions{}, func(snippet.Snippet) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected emit error to propagate, got %v", err)
	}
}

func TestWalk_MissingRoot(t *testing.T) {
	err := Walk(filepath.Join(t.TempDir(), "nope"), WalkOptions{}, func(snippet.Snippet) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestEpisodeNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"go-time-271.md", 271, false},
		{"news-2023-05-01-42.md", 42, false},
		{"practicalai-7.md", 7, false},
		{"README.md", 0, true},
		{"trailing-.md", 0, true},
		{"no-number-x.md", 0, true},
	}
	for _, tt := range tests {
		got, err := episodeNumber(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("episodeNumber(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("episodeNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
