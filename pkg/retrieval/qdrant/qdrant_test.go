// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package qdrant

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/retrieval"
)

type fakeEmbedder struct {
	calls []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakePoints struct {
	pb.PointsClient

	search   *pb.SearchPoints
	upserted *pb.UpsertPoints
	result   []*pb.ScoredPoint
	err      error
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.search = in
	if f.err != nil {
		return nil, f.err
	}
	return &pb.SearchResponse{Result: f.result}, nil
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.upserted = in
	return &pb.PointsOperationResponse{}, nil
}

type fakeCollections struct {
	pb.CollectionsClient

	existing []string
	created  []*pb.CreateCollection
}

func (f *fakeCollections) List(context.Context, *pb.ListCollectionsRequest, ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for _, name := range f.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in)
	f.existing = append(f.existing, in.CollectionName)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func scored(id string, score float32, content string) *pb.ScoredPoint {
	return &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
		Score: score,
		Payload: map[string]*pb.Value{
			PayloadContent: {Kind: &pb.Value_StringValue{StringValue: content}},
			PayloadSource:  {Kind: &pb.Value_StringValue{StringValue: "gdpr.txt"}},
		},
	}
}

func TestSearchKeepsRankingOrder(t *testing.T) {
	points := &fakePoints{result: []*pb.ScoredPoint{
		scored("b", 0.9, "Art. 17 right to erasure"),
		scored("a", 0.7, "Art. 28 processor obligations"),
	}}
	emb := &fakeEmbedder{}
	idx := NewWithClients(points, &fakeCollections{}, "legal", emb, WithScoreThreshold(0.5))

	docs, err := idx.Search(context.Background(), "data privacy", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "Art. 17 right to erasure", docs[0].Content)
	assert.Equal(t, "gdpr.txt", docs[0].Source)
	assert.Equal(t, "a", docs[1].ID)

	assert.Equal(t, []string{"data privacy"}, emb.calls)
	assert.Equal(t, "legal", points.search.CollectionName)
	assert.Equal(t, uint64(2), points.search.Limit)
	require.NotNil(t, points.search.ScoreThreshold)
	assert.Equal(t, float32(0.5), *points.search.ScoreThreshold)
}

func TestSearchFeedsIndexRetriever(t *testing.T) {
	points := &fakePoints{result: []*pb.ScoredPoint{
		scored("1", 0.9, "first"),
		scored("2", 0.8, ""),
		scored("3", 0.7, "third"),
	}}
	idx := NewWithClients(points, &fakeCollections{}, "legal", &fakeEmbedder{})
	r, err := retrieval.NewIndexRetriever(idx, 3)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "first\n\nthird", got)
	assert.Nil(t, points.search.ScoreThreshold)
}

func TestSearchErrors(t *testing.T) {
	idx := NewWithClients(&fakePoints{err: stderrors.New("unavailable")}, &fakeCollections{}, "legal", &fakeEmbedder{})
	_, err := idx.Search(context.Background(), "q", 3)
	assert.True(t, errors.HasCode(err, errors.CodeRetrieval))
	assert.False(t, errors.IsRecoverable(err))

	idx = NewWithClients(&fakePoints{err: status.Error(grpccodes.Unavailable, "connection refused")}, &fakeCollections{}, "legal", &fakeEmbedder{})
	_, err = idx.Search(context.Background(), "q", 3)
	assert.True(t, errors.HasCode(err, errors.CodeRetrieval))
	assert.True(t, errors.IsRecoverable(err))

	idx = NewWithClients(&fakePoints{err: status.Error(grpccodes.NotFound, "collection legal not found")}, &fakeCollections{}, "legal", &fakeEmbedder{})
	_, err = idx.Search(context.Background(), "q", 3)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	embErr := errors.New(errors.CodeRetrieval, "embedder down", nil)
	idx = NewWithClients(&fakePoints{}, &fakeCollections{}, "legal", &fakeEmbedder{err: embErr})
	_, err = idx.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, embErr)
}

func TestIngestCreatesCollectionOnce(t *testing.T) {
	points := &fakePoints{}
	cols := &fakeCollections{}
	idx := NewWithClients(points, cols, "legal", &fakeEmbedder{}, WithVectorSize(2), WithMaxChunk(10))

	n, err := idx.Ingest(context.Background(), "gdpr.txt", "Article one.\n\nArticle two.")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, cols.created, 1)
	assert.Equal(t, uint64(2), cols.created[0].GetVectorsConfig().GetParams().GetSize())

	require.NotNil(t, points.upserted)
	require.Len(t, points.upserted.Points, 2)
	first := points.upserted.Points[0]
	assert.Equal(t, "Article one.", first.Payload[PayloadContent].GetStringValue())
	assert.Equal(t, "gdpr.txt", first.Payload[PayloadSource].GetStringValue())
	assert.NotEmpty(t, first.GetId().GetUuid())

	_, err = idx.Ingest(context.Background(), "gdpr.txt", "Article three.")
	require.NoError(t, err)
	assert.Len(t, cols.created, 1)
}

func TestIngestEmptyText(t *testing.T) {
	idx := NewWithClients(&fakePoints{}, &fakeCollections{}, "legal", &fakeEmbedder{})
	_, err := idx.Ingest(context.Background(), "empty", " \n\n ")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{
			name:   "packs short paragraphs",
			text:   "a\n\nb\n\nc",
			maxLen: 100,
			want:   []string{"a\n\nb\n\nc"},
		},
		{
			name:   "splits at limit",
			text:   "aaaa\n\nbbbb\r\n\r\ncccc",
			maxLen: 10,
			want:   []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name:   "keeps oversized paragraph whole",
			text:   strings.Repeat("x", 20) + "\n\ny",
			maxLen: 10,
			want:   []string{strings.Repeat("x", 20), "y"},
		},
		{
			name:   "blank input",
			text:   "\n\n  \n\n",
			maxLen: 10,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.maxLen))
		})
	}
}
