// Package snippet defines the canonical unit of indexed content: one
// speaker's contiguous utterance within one episode, normalized and
// content-addressed, plus the parser that produces snippets from raw
// transcript text.
package snippet

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultMinWords is the minimum word count for a snippet to be worth
// indexing. Shorter utterances are noise for retrieval.
const DefaultMinWords = 25

// BreakSpeaker marks non-speech segments (music, ads) in the transcripts.
const BreakSpeaker = "Break"

// FilterFields enumerates the snippet fields a search filter may name.
// Kept next to the struct definition; extend both together.
var FilterFields = map[string]bool{
	"podcast_name":   true,
	"episode_number": true,
	"speaker":        true,
	"text":           true,
}

// Snippet is a contiguous span of speech by one speaker within one episode.
// ID and WordCount are derived at construction and never set independently.
// Embedding stays nil until the embed adapter attaches it; after upload the
// vector store owns the vector.
type Snippet struct {
	PodcastName   string    `json:"podcast_name"`
	EpisodeNumber int       `json:"episode_number"`
	Speaker       string    `json:"speaker"`
	Text          string    `json:"text"`
	WordCount     int       `json:"word_count"`
	ID            string    `json:"id"`
	Embedding     []float32 `json:"-"`
}

// New builds a Snippet from raw transcript text. The text is normalized
// first; the identity hashes podcast name, episode number, normalized text,
// and speaker in that exact order with no separators, so two snippets built
// from the same tuple always share an ID regardless of ingestion order.
func New(podcastName string, episodeNumber int, speaker, rawText string) Snippet {
	text := Normalize(rawText)
	return Snippet{
		PodcastName:   podcastName,
		EpisodeNumber: episodeNumber,
		Speaker:       speaker,
		Text:          text,
		WordCount:     len(strings.Fields(text)),
		ID:            Identity(podcastName, episodeNumber, text, speaker),
	}
}

// Identity computes the stable content hash used as the dedup key: hex md5
// of podcastName || episodeNumber || text || speaker. Changing the field
// order or algorithm invalidates every previously stored record.
func Identity(podcastName string, episodeNumber int, text, speaker string) string {
	sum := md5.Sum([]byte(podcastName + strconv.Itoa(episodeNumber) + text + speaker))
	return hex.EncodeToString(sum[:])
}

// PointID renders the snippet identity as the UUID the vector store keys
// points by. The 16 md5 digest bytes are the UUID bytes, so the mapping is
// deterministic and collision-equivalent to the identity itself.
func (s Snippet) PointID() string {
	return PointIDFor(s.ID)
}

// PointIDFor converts a hex identity to its point UUID.
func PointIDFor(identity string) string {
	raw, err := hex.DecodeString(identity)
	if err != nil || len(raw) != 16 {
		// Non-identity IDs (should not happen) fall back to a namespace UUID.
		return uuid.NewMD5(uuid.NameSpaceOID, []byte(identity)).String()
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.NewMD5(uuid.NameSpaceOID, []byte(identity)).String()
	}
	return id.String()
}
