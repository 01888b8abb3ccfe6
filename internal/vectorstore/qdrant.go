package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/vecsync/vecsync/pkg/types"
)

const (
	// DefaultQdrantAddr is the gRPC endpoint of a local Qdrant instance.
	DefaultQdrantAddr = "localhost:6334"

	// DefaultCollection is used when no collection name is configured.
	DefaultCollection = "vecsync_chunks"

	scrollPageSize = 256
)

// pointNamespace maps chunk ids onto stable UUIDs. Qdrant point ids must be
// UUIDs or integers, so the sha256 chunk id is carried in the payload and a
// UUIDv5 derived from it becomes the point id. The mapping is deterministic:
// the same chunk text always lands on the same point.
var pointNamespace = uuid.MustParse("8a2b64c0-31f7-4f01-9d7a-55e1c6a0f4d2")

// QdrantStore implements Store against a Qdrant collection over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
	dimension   uint64
}

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Addr       string
	Collection string
	Dimension  int
}

// NewQdrantStore connects to Qdrant and ensures the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultQdrantAddr
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant store requires a positive vector dimension, got %d", cfg.Dimension)
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("could not connect to Qdrant at %s: %w", cfg.Addr, err)
	}

	s := &QdrantStore{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dimension:   uint64(cfg.Dimension),
	}

	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err == nil {
		return nil
	}

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func pointID(chunkID string) *qdrant.PointId {
	u := uuid.NewSHA1(pointNamespace, []byte(chunkID))
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: u.String()}}
}

func scopeCondition(scopeRoot string) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
		Key:   "scope_root",
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: scopeRoot}},
	}}}
}

func pathCondition(path string) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
		Key:   "source_path",
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: path}},
	}}}
}

func pathsCondition(paths []string) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
		Key:   "source_path",
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: paths}}},
	}}}
}

func metadataPayload(p Point) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"chunk_id":      {Kind: &qdrant.Value_StringValue{StringValue: p.ID}},
		"text":          {Kind: &qdrant.Value_StringValue{StringValue: p.Text}},
		"source_path":   {Kind: &qdrant.Value_StringValue{StringValue: p.Metadata.SourcePath}},
		"scope_root":    {Kind: &qdrant.Value_StringValue{StringValue: p.Metadata.ScopeRoot}},
		"file_mtime_ns": {Kind: &qdrant.Value_IntegerValue{IntegerValue: p.Metadata.FileModTime.UnixNano()}},
		"chunk_index":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(p.Metadata.ChunkIndex)}},
		"chunk_total":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(p.Metadata.ChunkTotal)}},
		"content_hash":  {Kind: &qdrant.Value_StringValue{StringValue: p.Metadata.ContentHash}},
	}
}

func metadataFromPayload(payload map[string]*qdrant.Value) (string, string, types.Metadata) {
	meta := types.Metadata{
		SourcePath:  payload["source_path"].GetStringValue(),
		ScopeRoot:   payload["scope_root"].GetStringValue(),
		FileModTime: time.Unix(0, payload["file_mtime_ns"].GetIntegerValue()),
		ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
		ChunkTotal:  int(payload["chunk_total"].GetIntegerValue()),
		ContentHash: payload["content_hash"].GetStringValue(),
	}
	return payload["chunk_id"].GetStringValue(), payload["text"].GetStringValue(), meta
}

// Upsert writes the batch in a single acknowledged call.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      pointID(p.ID),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: p.Vector}}},
			Payload: metadataPayload(p),
		})
	}

	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qpoints,
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %v", types.ErrStoreWrite, err)
	}
	return nil
}

// Has checks which chunk ids already have points in the collection.
func (s *QdrantStore) Has(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	qids := make([]*qdrant.PointId, len(ids))
	byUUID := make(map[string]string, len(ids))
	for i, id := range ids {
		qids[i] = pointID(id)
		byUUID[qids[i].GetUuid()] = id
	}

	resp, err := s.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            qids,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: false}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get points from Qdrant: %w", err)
	}

	for _, p := range resp.GetResult() {
		if chunkID, ok := byUUID[p.GetId().GetUuid()]; ok {
			result[chunkID] = true
		}
	}
	return result, nil
}

// Get retrieves a single point by chunk id.
func (s *QdrantStore) Get(ctx context.Context, id string) (*Point, error) {
	resp, err := s.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point from Qdrant: %w", err)
	}
	if len(resp.GetResult()) == 0 {
		return nil, ErrNotFound
	}

	r := resp.GetResult()[0]
	_, text, meta := metadataFromPayload(r.GetPayload())
	return &Point{
		ID:       id,
		Text:     text,
		Vector:   r.GetVectors().GetVector().GetData(),
		Metadata: meta,
	}, nil
}

// ListFileStates scrolls every point under a scope and folds the payloads
// down to one state per source path.
func (s *QdrantStore) ListFileStates(ctx context.Context, scopeRoot string) ([]types.FileState, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot)}}

	byPath := make(map[string]*types.FileState)
	var offset *qdrant.PointId
	for {
		resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          proto.Uint32(scrollPageSize),
			Offset:         offset,
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points from Qdrant: %w", err)
		}

		for _, r := range resp.GetResult() {
			_, _, meta := metadataFromPayload(r.GetPayload())
			st, ok := byPath[meta.SourcePath]
			if !ok {
				byPath[meta.SourcePath] = &types.FileState{
					Path:        meta.SourcePath,
					ContentHash: meta.ContentHash,
					ModTime:     meta.FileModTime,
					ChunkCount:  1,
					ChunkTotal:  meta.ChunkTotal,
				}
				continue
			}
			st.ChunkCount++
			if meta.ChunkTotal > st.ChunkTotal {
				st.ChunkTotal = meta.ChunkTotal
			}
			if meta.FileModTime.After(st.ModTime) {
				st.ModTime = meta.FileModTime
				st.ContentHash = meta.ContentHash
			}
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	states := make([]types.FileState, 0, len(byPath))
	for _, st := range byPath {
		states = append(states, *st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Path < states[j].Path })
	return states, nil
}

// UpdateFilePath rewrites the path and mtime payload fields for every point
// of a moved file. Vectors are not touched.
func (s *QdrantStore) UpdateFilePath(ctx context.Context, scopeRoot, oldPath, newPath string, modTime time.Time) (int, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot), pathCondition(oldPath)}}

	n, err := s.countFiltered(ctx, filter)
	if err != nil {
		return 0, err
	}

	_, err = s.points.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collection,
		Payload: map[string]*qdrant.Value{
			"source_path":   {Kind: &qdrant.Value_StringValue{StringValue: newPath}},
			"file_mtime_ns": {Kind: &qdrant.Value_IntegerValue{IntegerValue: modTime.UnixNano()}},
		},
		PointsSelector: &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter}},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant set payload: %v", types.ErrStoreWrite, err)
	}
	return n, nil
}

// RefreshModTime updates only the stored mtime for a path.
func (s *QdrantStore) RefreshModTime(ctx context.Context, scopeRoot, path string, modTime time.Time) (int, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot), pathCondition(path)}}

	n, err := s.countFiltered(ctx, filter)
	if err != nil {
		return 0, err
	}

	_, err = s.points.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collection,
		Payload: map[string]*qdrant.Value{
			"file_mtime_ns": {Kind: &qdrant.Value_IntegerValue{IntegerValue: modTime.UnixNano()}},
		},
		PointsSelector: &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter}},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant set payload: %v", types.ErrStoreWrite, err)
	}
	return n, nil
}

// UpdateFileMeta rewrites file-level metadata on every point of a path.
func (s *QdrantStore) UpdateFileMeta(ctx context.Context, scopeRoot, path string, modTime time.Time, contentHash string, chunkTotal int) (int, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot), pathCondition(path)}}

	n, err := s.countFiltered(ctx, filter)
	if err != nil {
		return 0, err
	}

	_, err = s.points.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collection,
		Payload: map[string]*qdrant.Value{
			"file_mtime_ns": {Kind: &qdrant.Value_IntegerValue{IntegerValue: modTime.UnixNano()}},
			"content_hash":  {Kind: &qdrant.Value_StringValue{StringValue: contentHash}},
			"chunk_total":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(chunkTotal)}},
		},
		PointsSelector: &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter}},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant set payload: %v", types.ErrStoreWrite, err)
	}
	return n, nil
}

// DeleteByPaths removes points matching the filter. The scope condition is
// always part of the delete filter.
func (s *QdrantStore) DeleteByPaths(ctx context.Context, filter DeleteFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if len(filter.SourcePaths) == 0 {
		return 0, nil
	}

	qfilter := &qdrant.Filter{Must: []*qdrant.Condition{
		scopeCondition(filter.ScopeRoot),
		pathsCondition(filter.SourcePaths),
	}}

	n, err := s.countFiltered(ctx, qfilter)
	if err != nil {
		return 0, err
	}

	_, err = s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qfilter}},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant delete: %v", types.ErrStoreWrite, err)
	}
	return n, nil
}

// DeleteStale removes a path's points except the ones listed in keep.
func (s *QdrantStore) DeleteStale(ctx context.Context, scopeRoot, path string, keep []string) (int, error) {
	if scopeRoot == "" {
		return 0, fmt.Errorf("%w: refusing stale delete with empty scope", types.ErrScopeViolation)
	}

	qfilter := &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot), pathCondition(path)}}
	if len(keep) > 0 {
		keepIDs := make([]*qdrant.PointId, len(keep))
		for i, id := range keep {
			keepIDs[i] = pointID(id)
		}
		qfilter.MustNot = []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_HasId{HasId: &qdrant.HasIdCondition{HasId: keepIDs}},
		}}
	}

	n, err := s.countFiltered(ctx, qfilter)
	if err != nil {
		return 0, err
	}

	_, err = s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qfilter}},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant delete: %v", types.ErrStoreWrite, err)
	}
	return n, nil
}

// Query performs a similarity search, scoped when scopeRoot is non-empty.
func (s *QdrantStore) Query(ctx context.Context, scopeRoot string, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	req := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}
	if scopeRoot != "" {
		req.Filter = &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot)}}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search points in Qdrant: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		chunkID, text, meta := metadataFromPayload(hit.GetPayload())
		results = append(results, SearchResult{
			ID:       chunkID,
			Text:     text,
			Score:    float64(hit.GetScore()),
			Metadata: meta,
		})
	}
	return results, nil
}

// Count returns the number of points, optionally limited to one scope.
func (s *QdrantStore) Count(ctx context.Context, scopeRoot string) (int, error) {
	var filter *qdrant.Filter
	if scopeRoot != "" {
		filter = &qdrant.Filter{Must: []*qdrant.Condition{scopeCondition(scopeRoot)}}
	}
	return s.countFiltered(ctx, filter)
}

func (s *QdrantStore) countFiltered(ctx context.Context, filter *qdrant.Filter) (int, error) {
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          proto.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points in Qdrant: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Wipe drops and recreates the collection.
func (s *QdrantStore) Wipe(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &qdrant.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant drop collection: %v", types.ErrStoreWrite, err)
	}
	return s.ensureCollection(ctx)
}
