package semantic

import (
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/podseek/podseek/engine/snippet"
)

// Hit is a single similarity-search result: the snippet reconstructed from
// stored metadata (no embedding) and its similarity score.
type Hit struct {
	Snippet snippet.Snippet `json:"snippet"`
	Score   float32         `json:"score"`
}

// snippetPayload mirrors every non-derived snippet field plus the derived
// identity and word count, so a hit can be reconstructed without the vector.
func snippetPayload(s snippet.Snippet) map[string]*pb.Value {
	return map[string]*pb.Value{
		"podcast_name":   {Kind: &pb.Value_StringValue{StringValue: s.PodcastName}},
		"episode_number": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(s.EpisodeNumber)}},
		"speaker":        {Kind: &pb.Value_StringValue{StringValue: s.Speaker}},
		"text":           {Kind: &pb.Value_StringValue{StringValue: s.Text}},
		"word_count":     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(s.WordCount)}},
		"id":             {Kind: &pb.Value_StringValue{StringValue: s.ID}},
	}
}

// snippetFromPayload trusts stored metadata as already normalized; the text
// is not re-normalized and the identity is taken as stored.
func snippetFromPayload(payload map[string]*pb.Value) snippet.Snippet {
	return snippet.Snippet{
		PodcastName:   payload["podcast_name"].GetStringValue(),
		EpisodeNumber: int(payload["episode_number"].GetIntegerValue()),
		Speaker:       payload["speaker"].GetStringValue(),
		Text:          payload["text"].GetStringValue(),
		WordCount:     int(payload["word_count"].GetIntegerValue()),
		ID:            payload["id"].GetStringValue(),
	}
}
