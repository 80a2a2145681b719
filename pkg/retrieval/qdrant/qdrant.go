// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package qdrant implements a legal reference index on top of Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/retrieval"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

// Payload fields stored with every point.
const (
	PayloadContent = "content"
	PayloadSource  = "source"
)

const defaultMaxChunk = 1500

// Index searches and feeds a Qdrant collection of reference passages.
type Index struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	conn        *grpc.ClientConn

	embedder       retrieval.Embedder
	collection     string
	vectorSize     uint64
	scoreThreshold float32
	maxChunk       int
	logger         *slog.Logger
}

var _ retrieval.Searcher = (*Index)(nil)

// Option configures an Index.
type Option func(*Index)

// WithVectorSize sets the vector size used when the collection is created.
func WithVectorSize(size uint64) Option {
	return func(i *Index) {
		i.vectorSize = size
	}
}

// WithScoreThreshold drops hits scoring below threshold.
func WithScoreThreshold(threshold float32) Option {
	return func(i *Index) {
		i.scoreThreshold = threshold
	}
}

// WithMaxChunk caps the size in bytes of ingested chunks.
func WithMaxChunk(n int) Option {
	return func(i *Index) {
		i.maxChunk = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		i.logger = logger
	}
}

// New dials addr (host:port of the gRPC API) and returns an index over
// collection.
func New(addr, collection string, embedder retrieval.Embedder, opts ...Option) (*Index, error) {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "grpc://")
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to create qdrant client", err).
			WithContext("endpoint", addr)
	}
	idx := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, embedder, opts...)
	idx.conn = conn
	return idx, nil
}

// NewWithClients builds an index over existing gRPC clients.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient, collection string, embedder retrieval.Embedder, opts ...Option) *Index {
	idx := &Index{
		points:      points,
		collections: collections,
		embedder:    embedder,
		collection:  collection,
		vectorSize:  768,
		maxChunk:    defaultMaxChunk,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = telemetry.ComponentLogger(idx.logger, "qdrant")
	return idx
}

// Close releases the gRPC connection when New created it.
func (i *Index) Close() error {
	if i.conn == nil {
		return nil
	}
	return i.conn.Close()
}

// Search implements retrieval.Searcher. Documents come back in Qdrant's
// ranking order.
func (i *Index) Search(ctx context.Context, query string, topK int) ([]retrieval.Document, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "qdrant.search")
	defer span.End()

	vector, err := i.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := &pb.SearchPoints{
		CollectionName: i.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if i.scoreThreshold > 0 {
		threshold := i.scoreThreshold
		req.ScoreThreshold = &threshold
	}
	resp, err := i.points.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, i.rpcError("qdrant search failed", err)
	}

	docs := make([]retrieval.Document, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		docs = append(docs, retrieval.Document{
			ID:      pointID(r.GetId()),
			Content: r.GetPayload()[PayloadContent].GetStringValue(),
			Source:  r.GetPayload()[PayloadSource].GetStringValue(),
			Score:   r.GetScore(),
		})
	}
	span.SetAttributes(telemetry.RetrievalAttributes("qdrant", topK, len(docs))...)
	return docs, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (i *Index) EnsureCollection(ctx context.Context) error {
	list, err := i.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return i.rpcError("failed to list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == i.collection {
			return nil
		}
	}

	_, err = i.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     i.vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return i.rpcError("failed to create collection", err)
	}
	i.logger.Info("collection created", "collection", i.collection, "vector_size", i.vectorSize)
	return nil
}

// Ingest splits text into paragraph chunks, embeds them and upserts them
// tagged with source. It returns the number of points written.
func (i *Index) Ingest(ctx context.Context, source, text string) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "qdrant.ingest")
	defer span.End()

	chunks := Chunk(text, i.maxChunk)
	if len(chunks) == 0 {
		return 0, errors.New(errors.CodeInvalidInput, "nothing to ingest", nil).WithContext("source", source)
	}
	if err := i.EnsureCollection(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	points := make([]*pb.PointStruct, 0, len(chunks))
	for n, chunk := range chunks {
		vector, err := i.embedder.Embed(ctx, chunk)
		if err != nil {
			span.RecordError(err)
			return 0, errors.New(errors.CodeRetrieval, "failed to embed chunk", err).
				WithContext("source", source).
				WithContext("chunk", n)
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: map[string]*pb.Value{
				PayloadContent: {Kind: &pb.Value_StringValue{StringValue: chunk}},
				PayloadSource:  {Kind: &pb.Value_StringValue{StringValue: source}},
			},
		})
	}

	wait := true
	if _, err := i.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, i.rpcError("failed to upsert points", err)
	}
	i.logger.Info("references ingested", "collection", i.collection, "source", source, "chunks", len(points))
	return len(points), nil
}

// rpcError maps a Qdrant gRPC failure onto the error codes callers branch on.
func (i *Index) rpcError(msg string, err error) *errors.Error {
	switch status.Code(err) {
	case grpccodes.NotFound:
		return errors.New(errors.CodeNotFound, msg, err).WithContext("collection", i.collection)
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.ResourceExhausted, grpccodes.Aborted:
		return errors.New(errors.CodeRetrieval, msg, err).
			WithContext("collection", i.collection).
			WithRecoverable(true)
	default:
		return errors.New(errors.CodeRetrieval, msg, err).WithContext("collection", i.collection)
	}
}

// IngestFile ingests the contents of path. An empty source defaults to the
// file name.
func (i *Index) IngestFile(ctx context.Context, path, source string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.New(errors.CodeInvalidInput, "failed to read file", err).WithContext("path", path)
	}
	if source == "" {
		source = path
	}
	return i.Ingest(ctx, source, string(data))
}

// Chunk splits text on blank lines and packs consecutive paragraphs into
// chunks of at most maxLen bytes. A single paragraph longer than maxLen is
// kept whole.
func Chunk(text string, maxLen int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(retrieval.Separator)+len(para) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(retrieval.Separator)
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

func pointID(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
