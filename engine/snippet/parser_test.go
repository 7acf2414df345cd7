package snippet

import (
	"strings"
	"testing"
)

const longLineA = "Hello there and welcome back to the show everyone, this is going to be a fairly long introduction sentence with quite a few extra words so that it clears the minimum word count filter easily."

const longLineB = "Thanks so much for listening everyone, I really do appreciate every single one of you tuning in each week, and this is another sentence that is comfortably long enough to pass the word count filter."

func TestParseEpisode_SpeakerTurns(t *testing.T) {
	text := "**Adam:** " + longLineA + "\n" +
		"**Break:** [music]\n" +
		"**Adam:** " + longLineB + "\n"

	got := ParseEpisode(text, 1, "podcast", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(got))
	}
	for i, s := range got {
		if s.Speaker != "Adam" {
			t.Errorf("snippet %d speaker = %q, want Adam", i, s.Speaker)
		}
		if s.Speaker == BreakSpeaker {
			t.Errorf("break marker leaked into output")
		}
	}
	if !strings.HasPrefix(got[0].Text, "Hello there") {
		t.Errorf("first snippet text = %q", got[0].Text)
	}
	if !strings.HasPrefix(got[1].Text, "Thanks so much") {
		t.Errorf("second snippet text = %q", got[1].Text)
	}
}

func TestParseEpisode_Empty(t *testing.T) {
	if got := ParseEpisode("", 1, "podcast", 0); len(got) != 0 {
		t.Fatalf("expected empty sequence, got %d", len(got))
	}
}

func TestParseEpisode_NoMarkers(t *testing.T) {
	text := "just some narration text\nwithout any speaker markers at all\n"
	if got := ParseEpisode(text, 1, "podcast", 0); len(got) != 0 {
		t.Fatalf("text with no markers must yield zero snippets, got %d", len(got))
	}
}

func TestParseEpisode_MultiLineTurn(t *testing.T) {
	text := "**Jerod:** " + longLineA + "\n" +
		"and it keeps going on the next line\n" +
		"\n" +
		"and even after a blank line it is still the same turn\n" +
		"**Adam:** " + longLineB + "\n"

	got := ParseEpisode(text, 3, "podcast", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(got))
	}
	if !strings.Contains(got[0].Text, "same turn") {
		t.Errorf("continuation lines not joined: %q", got[0].Text)
	}
	if got[0].Speaker != "Jerod" || got[1].Speaker != "Adam" {
		t.Errorf("speakers = %q, %q", got[0].Speaker, got[1].Speaker)
	}
}

func TestParseEpisode_ConsecutiveMarkers(t *testing.T) {
	text := "**Adam:**\n**Jerod:** " + longLineA + "\n"
	got := ParseEpisode(text, 1, "podcast", 0)
	if len(got) != 1 {
		t.Fatalf("empty turn must emit nothing, got %d snippets", len(got))
	}
	if got[0].Speaker != "Jerod" {
		t.Errorf("speaker = %q", got[0].Speaker)
	}
}

func TestParseEpisode_MinWordFilter(t *testing.T) {
	text := "**Adam:** Too short to keep.\n" +
		"**Jerod:** " + longLineA + "\n"

	got := ParseEpisode(text, 1, "podcast", 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 snippet after filtering, got %d", len(got))
	}
	if got[0].Speaker != "Jerod" {
		t.Errorf("wrong snippet survived: %q", got[0].Speaker)
	}

	// A lower threshold keeps the short turn.
	got = ParseEpisode(text, 1, "podcast", 3)
	if len(got) != 2 {
		t.Fatalf("minWords=3 should keep both turns, got %d", len(got))
	}
}

func TestParseEpisode_LeadingTextWithoutSpeaker(t *testing.T) {
	text := "preamble that belongs to nobody\n**Adam:** " + longLineA + "\n"
	got := ParseEpisode(text, 1, "podcast", 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(got))
	}
	if strings.Contains(got[0].Text, "preamble") {
		t.Errorf("unattributed preamble leaked into snippet: %q", got[0].Text)
	}
}

func TestParseEpisode_FinalTurnFlushed(t *testing.T) {
	text := "**Adam:** " + longLineA // no trailing newline
	got := ParseEpisode(text, 9, "podcast", 0)
	if len(got) != 1 {
		t.Fatalf("trailing buffer must be flushed, got %d snippets", len(got))
	}
	if got[0].EpisodeNumber != 9 || got[0].PodcastName != "podcast" {
		t.Errorf("metadata not carried: %+v", got[0])
	}
}
