package snippet

import (
	"regexp"
	"strings"
)

// A line like `**Adam Stacoviak:** ...` opens a new speaking turn.
var speakerMarker = regexp.MustCompile(`^\*\*(.+?):\*\*`)

// ParseEpisode turns one raw transcript document into an ordered sequence of
// speaker-attributed snippets. minWords <= 0 selects DefaultMinWords.
//
// Lines are scanned in order: a speaker marker flushes the previous turn's
// non-empty buffer as a snippet, non-empty lines append to the current turn,
// empty lines are skipped. Text before the first marker belongs to no
// speaker and is discarded; consecutive markers with no text between them
// emit nothing.
func ParseEpisode(episodeText string, episodeNumber int, podcastName string, minWords int) []Snippet {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}

	var (
		items       []Snippet
		buf         strings.Builder
		lastSpeaker string
	)

	flush := func() {
		if lastSpeaker != "" && buf.Len() > 0 {
			items = append(items, New(podcastName, episodeNumber, lastSpeaker, buf.String()))
		}
		buf.Reset()
	}

	for _, line := range strings.Split(episodeText, "\n") {
		if line == "" {
			continue
		}

		if m := speakerMarker.FindStringSubmatch(line); m != nil {
			flush()
			lastSpeaker = m[1]
			rest := strings.TrimPrefix(line[len(m[0]):], " ")
			buf.WriteString(rest)
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
	}
	flush()

	return filterSnippets(items, minWords)
}

// filterSnippets drops break markers and short utterances.
func filterSnippets(items []Snippet, minWords int) []Snippet {
	out := make([]Snippet, 0, len(items))
	for _, s := range items {
		if s.Speaker == BreakSpeaker {
			continue
		}
		if s.WordCount < minWords {
			continue
		}
		out = append(out, s)
	}
	return out
}
