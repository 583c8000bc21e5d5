package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"resume-match-go/internal/config"
	"resume-match-go/internal/matching"
	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQdrant(t *testing.T, serverURL string, dimension int) *Qdrant {
	t.Helper()
	q, err := NewQdrant(&config.QdrantConfig{
		Endpoint:   serverURL,
		Collection: "doc_chunks",
		Dimension:  dimension,
	})
	require.NoError(t, err)
	return q
}

// TestPointIDDeterministic 同一文档同一分块永远得到同一个点ID
func TestPointIDDeterministic(t *testing.T) {
	q := newTestQdrant(t, "http://localhost:6333", 2)

	id1 := q.PointID("doc-1", 0)
	id2 := q.PointID("doc-1", 0)
	assert.Equal(t, id1, id2)

	assert.NotEqual(t, id1, q.PointID("doc-1", 1), "不同分块的点ID必须不同")
	assert.NotEqual(t, id1, q.PointID("doc-2", 0), "不同文档的点ID必须不同")

	// 均值向量使用保留下标-1
	assert.NotEqual(t, id1, q.PointID("doc-1", types.DocMeanChunkIndex))
}

// TestBuildQdrantFilter 过滤条件到Qdrant DSL的翻译
func TestBuildQdrantFilter(t *testing.T) {
	assert.Nil(t, buildQdrantFilter(nil))
	assert.Nil(t, buildQdrantFilter(&matching.SearchFilter{}))

	qf := buildQdrantFilter(&matching.SearchFilter{
		DocID:          "doc-1",
		DocType:        types.DocTypeResume,
		RealChunksOnly: true,
	})
	require.NotNil(t, qf)
	must, ok := qf["must"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, must, 3)
}

func TestQdrantPointToChunk(t *testing.T) {
	p := qdrantPoint{
		ID:    "p1",
		Score: 0.9,
		Payload: map[string]interface{}{
			"snippet":     "负责支付网关开发",
			"doc_id":      "doc-1",
			"doc_type":    "resume",
			"chunk_index": float64(3),
		},
	}
	chunk := p.toChunk()
	assert.Equal(t, "p1", chunk.ID)
	assert.Equal(t, "负责支付网关开发", chunk.Snippet)
	assert.Equal(t, "doc-1", chunk.DocID)
	assert.Equal(t, types.DocTypeResume, chunk.DocType)
	assert.Equal(t, 3, chunk.ChunkIndex)

	// payload缺失时使用安全默认值
	empty := qdrantPoint{ID: "p2"}.toChunk()
	assert.Equal(t, 0, empty.ChunkIndex)
	assert.Empty(t, empty.Snippet)
}

// TestQdrantSearch 走HTTP到假服务端的完整查询路径
func TestQdrantSearch(t *testing.T) {
	var capturedReq map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/doc_chunks/points/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": []map[string]interface{}{
				{
					"id":    "p1",
					"score": 0.9,
					"payload": map[string]interface{}{
						"snippet":     "Golang开发",
						"doc_id":      "doc-1",
						"doc_type":    "resume",
						"chunk_index": 0,
					},
				},
			},
			"status": "ok",
		})
	}))
	defer server.Close()

	q := newTestQdrant(t, server.URL, 2)
	filter := &matching.SearchFilter{DocID: "doc-1", RealChunksOnly: true}
	chunks, err := q.Search(context.Background(), []float64{0.1, 0.2}, 5, filter, false)

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "p1", chunks[0].ID)
	assert.Equal(t, 0.9, chunks[0].RawScore)
	assert.Equal(t, "doc-1", chunks[0].DocID)

	// 请求体里必须带上过滤条件
	assert.NotNil(t, capturedReq["filter"])
	assert.Equal(t, float64(5), capturedReq["limit"])
}

// TestQdrantSearchDimensionMismatch 维度不符在发请求前就失败
func TestQdrantSearchDimensionMismatch(t *testing.T) {
	q := newTestQdrant(t, "http://localhost:6333", 4)

	_, err := q.Search(context.Background(), []float64{0.1, 0.2}, 5, nil, false)

	var mismatch *matching.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.QueryDim)
	assert.Equal(t, 4, mismatch.IndexDim)
}

// TestQdrantMetricCachedAfterFirstProbe 度量探测只发一次请求
func TestQdrantMetricCachedAfterFirstProbe(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"config": map[string]interface{}{
					"params": map[string]interface{}{
						"vectors": map[string]interface{}{
							"size":     2,
							"distance": "Euclid",
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	q := newTestQdrant(t, server.URL, 2)

	first, err := q.Metric(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.MetricEuclidean, first)

	second, err := q.Metric(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load(), "第二次调用必须命中缓存")
}

// TestQdrantMetricConcurrentFirstUse 并发首次探测只打一次服务端，
// 且所有调用方拿到同一个度量值
func TestQdrantMetricConcurrentFirstUse(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"config": map[string]interface{}{
					"params": map[string]interface{}{
						"vectors": map[string]interface{}{
							"size":     2,
							"distance": "Euclid",
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	q := newTestQdrant(t, server.URL, 2)

	const goroutines = 8
	const callsEach = 50
	results := make([]types.DistanceMetric, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				m, err := q.Metric(context.Background())
				assert.NoError(t, err)
				results[slot] = m
			}
		}(i)
	}
	wg.Wait()

	for _, m := range results {
		assert.Equal(t, types.MetricEuclidean, m)
	}
	assert.Equal(t, int64(1), hits.Load(), "并发首次调用必须合并为一次探测")
}

// TestQdrantFetchPointsEmpty 空ID列表不发请求
func TestQdrantFetchPointsEmpty(t *testing.T) {
	q := newTestQdrant(t, "http://localhost:6333", 2)
	chunks, err := q.FetchPoints(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
