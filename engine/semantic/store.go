// Package semantic owns all Qdrant operations for the snippet index: one
// collection of (point UUID, vector, snippet metadata) records with
// dot-product similarity.
package semantic

import (
	"context"
	"fmt"
	"sort"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/podseek/podseek/engine/snippet"
)

// PointsAPI is the subset of the Qdrant points service the store uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// CollectionsAPI is the subset of the Qdrant collections service the store uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of the snippet collection in Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
}

// scrollPageSize bounds a single scroll request; ScrollIDs pages until the
// server reports no further offset, so the full collection is always covered.
const scrollPageSize = 4096

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a Store over explicit service clients. Used by tests.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string) *Store {
	return &Store{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist. Distance is
// DOT: vectors are unit-normalized by the embed adapter, so dot product
// equals cosine similarity.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Dot,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	return nil
}

// UpsertSnippets stores embedded snippets. Every snippet must already carry
// its embedding. Points are keyed by the snippet's identity UUID, so
// re-upserting the same content overwrites rather than duplicates.
func (s *Store) UpsertSnippets(ctx context.Context, items []snippet.Snippet) error {
	if len(items) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(items))
	for i, sn := range items {
		if sn.Embedding == nil {
			return fmt.Errorf("semantic: snippet %s has no embedding", sn.ID)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: sn.PointID()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: sn.Embedding},
				},
			},
			Payload: snippetPayload(sn),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(items), err)
	}
	return nil
}

// SearchFiltered performs similarity search with optional metadata filters.
// Each filter pair becomes a text-match condition on that payload field;
// multiple pairs are ANDed. Results come back best-first.
func (s *Store) SearchFiltered(ctx context.Context, vector []float32, limit int, filters map[string]string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, textMatch(k, v))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = Hit{
			Snippet: snippetFromPayload(r.GetPayload()),
			Score:   r.GetScore(),
		}
	}
	return hits, nil
}

// ScrollIDs returns the point ID of every record in the collection. This is
// the existence scan the indexing pipeline dedups against, so it pages
// through the entire collection rather than sampling.
func (s *Store) ScrollIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		offset *pb.PointId
	)
	limit := uint32(scrollPageSize)

	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false}},
		})
		if err != nil {
			return nil, fmt.Errorf("semantic: scroll ids: %w", err)
		}
		for _, p := range resp.GetResult() {
			ids = append(ids, p.GetId().GetUuid())
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

// DistinctPayload scrolls the collection and returns the sorted unique
// string values of one payload field. Serves the podcast and speaker
// listing endpoints.
func (s *Store) DistinctPayload(ctx context.Context, field string) ([]string, error) {
	seen := make(map[string]struct{})
	var offset *pb.PointId
	limit := uint32(scrollPageSize)

	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload: &pb.WithPayloadSelector{
				SelectorOptions: &pb.WithPayloadSelector_Include{
					Include: &pb.PayloadIncludeSelector{Fields: []string{field}},
				},
			},
			WithVectors: &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false}},
		})
		if err != nil {
			return nil, fmt.Errorf("semantic: scroll %s: %w", field, err)
		}
		for _, p := range resp.GetResult() {
			if v := p.GetPayload()[field].GetStringValue(); v != "" {
				seen[v] = struct{}{}
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func textMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Text{Text: value},
				},
			},
		},
	}
}
