package index

import (
	"context"
	"errors"
	"testing"

	"github.com/docstack-ai/docstack/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	searchResp *pb.SearchResponse
	searchErr  error
	countResp  *pb.CountResponse
	countErr   error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}
func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createResp *pb.CollectionOperationResponse
	createErr  error
	created    bool
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, _ *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = true
	return m.createResp, m.createErr
}

// --- Tests ---

func TestQdrantEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "docs"}},
		},
	}
	q := NewQdrantWithClients(&mockPoints{}, cols, "docs", 4)
	if err := q.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.created {
		t.Fatal("collection recreated")
	}
}

func TestQdrantEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	q := NewQdrantWithClients(&mockPoints{}, cols, "docs", 128)
	if err := q.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cols.created {
		t.Fatal("collection not created")
	}
}

func TestQdrantEnsureCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	q := NewQdrantWithClients(&mockPoints{}, cols, "docs", 4)
	if err := q.EnsureCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestQdrantUpsert_MintsFreshIDs(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 2)

	records := []Record{
		{Content: "same", Embedding: []float32{1, 0}, Metadata: domain.Metadata{domain.MetaChunkID: 0, "w": 3.5, "ok": true}},
		{Content: "same", Embedding: []float32{1, 0}},
	}
	if err := q.Upsert(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pointsSent := pts.upsertReq.GetPoints()
	if len(pointsSent) != 2 {
		t.Fatalf("expected 2 points, got %d", len(pointsSent))
	}
	id0 := pointsSent[0].GetId().GetUuid()
	id1 := pointsSent[1].GetId().GetUuid()
	if id0 == "" || id0 == id1 {
		t.Fatalf("ids not fresh/unique: %q %q", id0, id1)
	}
	if pointsSent[0].GetPayload()["content"].GetStringValue() != "same" {
		t.Error("content payload missing")
	}
	if pointsSent[0].GetPayload()["chunk_id"].GetIntegerValue() != 0 {
		t.Error("integer metadata lost")
	}
}

func TestQdrantUpsert_Empty(t *testing.T) {
	q := NewQdrantWithClients(&mockPoints{}, &mockCollections{}, "docs", 2)
	if err := q.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQdrantUpsert_DimensionMismatch(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 4)
	err := q.Upsert(context.Background(), []Record{{Content: "x", Embedding: []float32{1, 0}}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("got %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("bad batch must not reach the engine")
	}
}

func TestQdrantUpsert_EngineError(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("engine down")}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 2)
	err := q.Upsert(context.Background(), []Record{{Content: "x", Embedding: []float32{1, 0}}})
	if err == nil {
		t.Fatal("expected propagated engine error")
	}
}

func TestQdrantSearch_Success(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.93,
					Payload: map[string]*pb.Value{
						"content":     {Kind: &pb.Value_StringValue{StringValue: "neural networks"}},
						"source":      {Kind: &pb.Value_StringValue{StringValue: "paper.pdf"}},
						"page":        {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
						"chunk_id":    {Kind: &pb.Value_IntegerValue{IntegerValue: 0}},
						"probability": {Kind: &pb.Value_DoubleValue{DoubleValue: 0.5}},
					},
				},
			},
		},
	}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 2)

	hits, err := q.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.ID != "p1" || h.Score != 0.93 || h.Content != "neural networks" {
		t.Errorf("hit mismatch: %+v", h)
	}
	if h.Metadata["page"] != 3 || h.Metadata["source"] != "paper.pdf" {
		t.Errorf("metadata mismatch: %v", h.Metadata)
	}
	if h.Metadata["probability"] != 0.5 {
		t.Errorf("double metadata mismatch: %v", h.Metadata)
	}
	if _, ok := h.Metadata["content"]; ok {
		t.Error("content leaked into metadata")
	}
}

func TestQdrantSearch_EmptyIndex(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 2)
	hits, err := q.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected 0 hits, got %d", len(hits))
	}
}

func TestQdrantSearch_DimensionMismatch(t *testing.T) {
	q := NewQdrantWithClients(&mockPoints{}, &mockCollections{}, "docs", 4)
	_, err := q.Search(context.Background(), []float32{1}, 5)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("got %v", err)
	}
}

func TestQdrantSearch_EngineError(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 1)
	if _, err := q.Search(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestQdrantCount(t *testing.T) {
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 42}}}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 2)
	n, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Fatalf("count = %d, want 42", n)
	}
}

func TestQdrantCount_Error(t *testing.T) {
	pts := &mockPoints{countErr: errors.New("fail")}
	q := NewQdrantWithClients(pts, &mockCollections{}, "docs", 2)
	if _, err := q.Count(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestQdrantClose_NoConn(t *testing.T) {
	q := NewQdrantWithClients(&mockPoints{}, &mockCollections{}, "docs", 2)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
