package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"mindloop/internal/chatmodel"
)

// payloadIDField stores the caller-supplied ID in the point payload
// when it isn't itself a UUID, since Qdrant point IDs must be a UUID or
// an unsigned integer.
const payloadIDField = "_original_id"

// Qdrant is a github.com/qdrant/go-client-backed Store. Unlike a
// single-collection Qdrant wrapper, this type is collection-parametric
// to match the GetOrCreateCollection/Add/Query contract, which names a
// collection on every call.
type Qdrant struct {
	client *qdrant.Client
	dim    int
	metric string

	mu      sync.Mutex
	created map[string]bool
}

// NewQdrant dials a Qdrant instance over gRPC (default port 6334).
func NewQdrant(dsn string, dim int, metric string) (*Qdrant, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse qdrant dsn: %v", chatmodel.ErrFatalInit, err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid qdrant port: %v", chatmodel.ErrFatalInit, err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create qdrant client: %v", chatmodel.ErrFatalInit, err)
	}
	return &Qdrant{client: client, dim: dim, metric: strings.ToLower(metric), created: map[string]bool{}}, nil
}

func (q *Qdrant) distance() qdrant.Distance {
	switch q.metric {
	case "l2", "euclidean":
		return qdrant.Distance_Euclid
	case "ip", "dot":
		return qdrant.Distance_Dot
	case "manhattan":
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

func (q *Qdrant) GetOrCreateCollection(ctx context.Context, name string, _ map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.created[name] {
		return nil
	}
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: collection exists check: %v", chatmodel.ErrTransient, err)
	}
	if !exists {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dim),
				Distance: q.distance(),
			}),
		}); err != nil {
			return fmt.Errorf("%w: create collection: %v", chatmodel.ErrTransient, err)
		}
	}
	q.created[name] = true
	return nil
}

func pointIDFor(id string) (*qdrant.PointId, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id), false
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	return qdrant.NewIDUUID(derived), true
}

func (q *Qdrant) Add(ctx context.Context, collection string, req AddRequest) error {
	points := make([]*qdrant.PointStruct, 0, len(req.IDs))
	for i, id := range req.IDs {
		pointID, derived := pointIDFor(id)
		payload := map[string]any{}
		if i < len(req.Metadatas) && req.Metadatas[i] != nil {
			for k, v := range req.Metadatas[i] {
				payload[k] = v
			}
		}
		if i < len(req.Documents) {
			payload["_document"] = req.Documents[i]
		}
		if derived {
			payload[payloadIDField] = id
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID,
			Vectors: qdrant.NewVectorsDense(req.Embeddings[i]),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: points})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %v", chatmodel.ErrTransient, err)
	}
	return nil
}

func buildFilter(where map[string]any) *qdrant.Filter {
	if len(where) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(where))
	for k, v := range where {
		if s, ok := v.(string); ok {
			must = append(must, qdrant.NewMatch(k, s))
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func extractPayload(payload map[string]*qdrant.Value) (doc string, meta map[string]any, originalID string) {
	meta = map[string]any{}
	for k, v := range payload {
		switch k {
		case "_document":
			doc = v.GetStringValue()
		case payloadIDField:
			originalID = v.GetStringValue()
		default:
			meta[k] = v.GetStringValue()
		}
	}
	return
}

func (q *Qdrant) Query(ctx context.Context, collection string, embedding []float32, n int, where map[string]any) (QueryResult, error) {
	if n <= 0 {
		n = 10
	}
	limit := uint64(n)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          &limit,
		Filter:         buildFilter(where),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: qdrant query: %v", chatmodel.ErrTransient, err)
	}
	res := QueryResult{}
	for _, hit := range hits {
		doc, meta, originalID := extractPayload(hit.Payload)
		id := originalID
		if id == "" {
			id = hit.Id.GetUuid()
		}
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, meta)
		res.Distances = append(res.Distances, 1-hit.Score)
	}
	return res, nil
}

func (q *Qdrant) Get(ctx context.Context, collection string, ids []string, where map[string]any, limit int) (GetResult, error) {
	res := GetResult{}
	if len(ids) > 0 {
		pointIDs := make([]*qdrant.PointId, 0, len(ids))
		for _, id := range ids {
			pid, _ := pointIDFor(id)
			pointIDs = append(pointIDs, pid)
		}
		points, err := q.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            pointIDs,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return res, fmt.Errorf("%w: qdrant get: %v", chatmodel.ErrTransient, err)
		}
		for _, p := range points {
			doc, meta, originalID := extractPayload(p.Payload)
			id := originalID
			if id == "" {
				id = p.Id.GetUuid()
			}
			res.IDs = append(res.IDs, id)
			res.Documents = append(res.Documents, doc)
			res.Metadatas = append(res.Metadatas, meta)
		}
		return res, nil
	}

	if limit <= 0 {
		limit = 100
	}
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         buildFilter(where),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return res, fmt.Errorf("%w: qdrant scroll: %v", chatmodel.ErrTransient, err)
	}
	for _, p := range points {
		doc, meta, originalID := extractPayload(p.Payload)
		id := originalID
		if id == "" {
			id = p.Id.GetUuid()
		}
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, meta)
	}
	return res, nil
}

func (q *Qdrant) Delete(ctx context.Context, collection string, ids []string, where map[string]any) error {
	var selector *qdrant.PointsSelector
	if len(ids) > 0 {
		pointIDs := make([]*qdrant.PointId, 0, len(ids))
		for _, id := range ids {
			pid, _ := pointIDFor(id)
			pointIDs = append(pointIDs, pid)
		}
		selector = qdrant.NewPointsSelector(pointIDs...)
	} else {
		selector = &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: buildFilter(where)},
		}
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{CollectionName: collection, Points: selector})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete: %v", chatmodel.ErrTransient, err)
	}
	return nil
}

func (q *Qdrant) Count(ctx context.Context, collection string) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: collection})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant count: %v", chatmodel.ErrTransient, err)
	}
	return int(n), nil
}
