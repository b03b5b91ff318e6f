// Package qdrant provides a Qdrant vector database backend over gRPC. It
// targets server deployments; the default embedded backend is sqlitevec.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/contextlab/ragstore/pkg/vector"
)

// payload keys used for stored passages.
const (
	payloadContent   = "content"
	payloadPassageID = "passage_id"
)

// pointNamespace derives deterministic point UUIDs from passage IDs. Qdrant
// point IDs must be UUIDs or integers; the original passage ID is carried in
// the payload.
var pointNamespace = uuid.MustParse("9f2c5e39-4b1a-4f6e-8a4e-2d6f3f1c7b10")

// pointsAPI and collectionsAPI are the slices of the generated gRPC clients
// the store uses, narrowed so tests can stand in for a live server.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store implements vector.Store using Qdrant's gRPC API.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	logger      *zap.Logger
}

// Config holds configuration for the Qdrant store.
type Config struct {
	// Addr is the Qdrant gRPC address (e.g., "localhost:6334").
	Addr string
}

// NewStore creates a Qdrant-backed store connected at the given gRPC address.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("%w: qdrant address is required", vector.ErrConnection)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := grpc.NewClient(c.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial qdrant %s: %v", vector.ErrConnection, c.Addr, err)
	}

	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		logger:      logger,
	}, nil
}

// Collections lists the names of all collections on the server.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing collections: %v", vector.ErrRead, err)
	}
	names := make([]string, 0, len(list.GetCollections()))
	for _, c := range list.GetCollections() {
		names = append(names, c.GetName())
	}
	return names, nil
}

// ensureCollection creates the collection with cosine distance if absent.
func (s *Store) ensureCollection(ctx context.Context, name string, dims int) error {
	names, err := s.Collections(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %q: %v", vector.ErrWrite, name, err)
	}

	s.logger.Info("created collection",
		zap.String("collection", name),
		zap.Int("dimensions", dims),
	)
	return nil
}

// toPayload converts passage content and metadata to a Qdrant payload.
func toPayload(doc vector.Document) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(doc.Metadata)+2)
	payload[payloadContent] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: doc.Content}}
	payload[payloadPassageID] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: doc.ID}}
	for k, val := range doc.Metadata {
		switch tv := val.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

// fromPayload rebuilds a document from a Qdrant payload.
func fromPayload(payload map[string]*pb.Value) vector.Document {
	doc := vector.Document{}
	meta := make(map[string]any)
	for k, val := range payload {
		switch k {
		case payloadContent:
			doc.Content = val.GetStringValue()
		case payloadPassageID:
			doc.ID = val.GetStringValue()
		default:
			switch kind := val.GetKind().(type) {
			case *pb.Value_StringValue:
				meta[k] = kind.StringValue
			case *pb.Value_IntegerValue:
				meta[k] = kind.IntegerValue
			case *pb.Value_DoubleValue:
				meta[k] = kind.DoubleValue
			case *pb.Value_BoolValue:
				meta[k] = kind.BoolValue
			default:
				meta[k] = val.String()
			}
		}
	}
	if len(meta) > 0 {
		doc.Metadata = meta
	}
	return doc
}

// Add upserts documents into the named collection, creating it if absent.
func (s *Store) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	if err := s.ensureCollection(ctx, collection, len(docs[0].Embedding)); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: uuid.NewSHA1(pointNamespace, []byte(doc.ID)).String(),
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: doc.Embedding},
				},
			},
			Payload: toPayload(doc),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting %d points: %v", vector.ErrWrite, len(points), err)
	}

	s.logger.Debug("added passages",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query returns the k nearest passages in the named collection, closest
// first. Qdrant reports cosine similarity; it is converted to distance to
// honor the Store contract.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, k int) ([]vector.QueryResult, error) {
	if k <= 0 {
		k = 4
	}

	names, err := s.Collections(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, n := range names {
		if n == collection {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", vector.ErrCollectionNotFound, collection)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching: %v", vector.ErrRead, err)
	}

	results := make([]vector.QueryResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		doc := fromPayload(r.GetPayload())
		results[i] = vector.QueryResult{
			Document: doc,
			Distance: 1 - r.GetScore(),
		}
	}

	s.logger.Debug("queried collection",
		zap.String("collection", collection),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

var _ vector.Store = (*Store)(nil)
