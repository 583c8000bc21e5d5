package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/matching"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var qdrantTracer = otel.Tracer("resume-match-go/storage/qdrant")

// QdrantPointIDNamespace 生成确定性点ID的专用命名空间。
// 同一文档的同一分块永远得到同一个点ID，这是按ID重建回退链的前提。
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("9b1c6e44-7d2a-4f8e-b3a1-2c5d90e4f7a3"))

// 确保Qdrant实现了匹配引擎的向量索引契约
var _ matching.VectorIndex = (*Qdrant)(nil)

// Qdrant 基于REST API的向量数据库客户端
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	apiKey         string
	httpClient     *http.Client

	metricGroup  singleflight.Group
	metricMu     sync.RWMutex
	cachedMetric types.DistanceMetric
}

// QdrantOption Qdrant构造选项
type QdrantOption func(*Qdrant)

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "doc_chunks"
	}
	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// PointID 计算某文档某分块的确定性点ID
func (q *Qdrant) PointID(docID string, chunkIndex int) string {
	source := fmt.Sprintf("doc_id:%s_chunk_index:%d", docID, chunkIndex)
	return uuid.NewV5(QdrantPointIDNamespace, source).String()
}

// Dimension 返回集合配置的向量维度
func (q *Qdrant) Dimension() int {
	return q.vectorSize
}

// Metric 返回集合的距离度量。只向服务端查询一次，singleflight
// 合并并发的首次探测，之后直接用缓存值；探测失败按余弦处理。
func (q *Qdrant) Metric(ctx context.Context) (types.DistanceMetric, error) {
	if m := q.loadCachedMetric(); m != "" {
		return m, nil
	}

	v, err, _ := q.metricGroup.Do("metric", func() (interface{}, error) {
		// 上一轮探测可能已经在Do返回前写好了缓存，再查一次
		if m := q.loadCachedMetric(); m != "" {
			return m, nil
		}
		metric, err := q.describeMetric(ctx)
		if err != nil {
			return nil, err
		}
		q.metricMu.Lock()
		q.cachedMetric = metric
		q.metricMu.Unlock()
		return metric, nil
	})
	if err != nil {
		return types.MetricCosine, err
	}
	return v.(types.DistanceMetric), nil
}

func (q *Qdrant) loadCachedMetric() types.DistanceMetric {
	q.metricMu.RLock()
	defer q.metricMu.RUnlock()
	return q.cachedMetric
}

func (q *Qdrant) describeMetric(ctx context.Context) (types.DistanceMetric, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DescribeMetric",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "describe_collection"),
		attribute.String("db.collection", q.collectionName),
	)

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	err := q.doRequest(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collectionName), nil, &info)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return types.MetricCosine, err
	}

	span.SetAttributes(attribute.String("collection.distance", info.Result.Config.Params.Vectors.Distance))
	span.SetStatus(codes.Ok, "")

	switch info.Result.Config.Params.Vectors.Distance {
	case "Euclid", "Euclidean":
		return types.MetricEuclidean, nil
	case "Dot", "DotProduct":
		return types.MetricDotProduct, nil
	case "Cosine":
		return types.MetricCosine, nil
	default:
		return types.MetricCosine, nil
	}
}

// Search 近邻查询，filter为nil时不带过滤条件
func (q *Qdrant) Search(ctx context.Context, vector []float64, topK int, filter *matching.SearchFilter, withVectors bool) ([]types.ScoredChunk, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Search",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", topK),
		attribute.Int("query_vector.size", len(vector)),
	)

	if len(vector) != q.vectorSize {
		err := &matching.DimensionMismatchError{QueryDim: len(vector), IndexDim: q.vectorSize}
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	searchReq := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	if qf := buildQdrantFilter(filter); qf != nil {
		searchReq["filter"] = qf
	}

	var result struct {
		Result []qdrantPoint `json:"result"`
		Status string        `json:"status"`
		Time   float64       `json:"time"`
	}
	if err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collectionName), searchReq, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	chunks := make([]types.ScoredChunk, 0, len(result.Result))
	for _, p := range result.Result {
		chunks = append(chunks, types.ScoredChunk{
			Chunk:    p.toChunk(),
			RawScore: p.Score,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(chunks)),
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)
	span.SetStatus(codes.Ok, "")
	return chunks, nil
}

// FetchPoint 按ID取单个分块，不存在时返回nil
func (q *Qdrant) FetchPoint(ctx context.Context, id string) (*types.Chunk, error) {
	chunks, err := q.FetchPoints(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return &chunks[0], nil
}

// FetchPoints 按ID批量取分块（带向量），缺失的ID静默跳过
func (q *Qdrant) FetchPoints(ctx context.Context, ids []string) ([]types.Chunk, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.FetchPoints",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "retrieve_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("points.requested", len(ids)),
	)

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "no ids")
		return []types.Chunk{}, nil
	}

	reqBody := map[string]interface{}{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  true,
	}

	var result struct {
		Result []qdrantPoint `json:"result"`
		Status string        `json:"status"`
	}
	if err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", q.collectionName), reqBody, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	chunks := make([]types.Chunk, 0, len(result.Result))
	for _, p := range result.Result {
		chunks = append(chunks, p.toChunk())
	}

	span.SetAttributes(attribute.Int("points.fetched", len(chunks)))
	span.SetStatus(codes.Ok, "")
	return chunks, nil
}

// qdrantPoint 查询和取回共用的点结构
type qdrantPoint struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
	Vector  []float64              `json:"vector,omitempty"`
}

// toChunk 把点的payload还原为分块。payload字段缺失时给安全默认值。
func (p qdrantPoint) toChunk() types.Chunk {
	chunk := types.Chunk{
		ID:         p.ID,
		Vector:     p.Vector,
		ChunkIndex: 0,
	}
	if v, ok := p.Payload["snippet"].(string); ok {
		chunk.Snippet = truncateSnippet(v)
	}
	if v, ok := p.Payload["doc_id"].(string); ok {
		chunk.DocID = v
	}
	if v, ok := p.Payload["doc_type"].(string); ok {
		chunk.DocType = types.DocType(v)
	}
	if v, ok := p.Payload["chunk_index"].(float64); ok {
		chunk.ChunkIndex = int(v)
	}
	return chunk
}

// truncateSnippet 片段超长时按rune截断，防止脏数据撑爆下游日志和响应
func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= types.MaxSnippetLength {
		return s
	}
	return string(runes[:types.MaxSnippetLength])
}

// buildQdrantFilter 把引擎的过滤条件翻译为Qdrant的filter DSL
func buildQdrantFilter(filter *matching.SearchFilter) map[string]interface{} {
	if filter == nil {
		return nil
	}
	var must []map[string]interface{}
	if filter.DocID != "" {
		must = append(must, map[string]interface{}{
			"key":   "doc_id",
			"match": map[string]interface{}{"value": filter.DocID},
		})
	}
	if filter.DocType != "" {
		must = append(must, map[string]interface{}{
			"key":   "doc_type",
			"match": map[string]interface{}{"value": string(filter.DocType)},
		})
	}
	if filter.RealChunksOnly {
		// 排除保留下标-1的文档均值向量
		must = append(must, map[string]interface{}{
			"key":   "chunk_index",
			"range": map[string]interface{}{"gte": 0},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]interface{}{"must": must}
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error
	if body != nil {
		jsonBody, merr := json.Marshal(body)
		if merr != nil {
			tracing.RecordError(span, merr, tracing.ErrorTypeVectorDB)
			return merr
		}
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
