package matching

import (
	"context"
	"fmt"
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex 可配置的VectorIndex假实现
type fakeIndex struct {
	dimension     int
	metric        types.DistanceMetric
	metricErr     error
	filtered      []types.ScoredChunk
	filteredErr   error
	unfiltered    []types.ScoredChunk
	unfilteredErr error
	points        map[string]types.Chunk
	fetchErr      error
}

func (f *fakeIndex) Search(_ context.Context, _ []float64, _ int, filter *SearchFilter, _ bool) ([]types.ScoredChunk, error) {
	if filter != nil {
		return f.filtered, f.filteredErr
	}
	return f.unfiltered, f.unfilteredErr
}

func (f *fakeIndex) FetchPoint(_ context.Context, id string) (*types.Chunk, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if c, ok := f.points[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeIndex) FetchPoints(_ context.Context, ids []string) ([]types.Chunk, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	result := make([]types.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.points[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeIndex) Metric(_ context.Context) (types.DistanceMetric, error) {
	if f.metricErr != nil {
		return "", f.metricErr
	}
	if f.metric == "" {
		return types.MetricCosine, nil
	}
	return f.metric, nil
}

func (f *fakeIndex) PointID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", docID, chunkIndex)
}

func (f *fakeIndex) Dimension() int {
	return f.dimension
}

func rawChunk(id, docID string, chunkIndex int, raw float64) types.ScoredChunk {
	return types.ScoredChunk{
		Chunk: types.Chunk{
			ID:         id,
			Snippet:    fmt.Sprintf("分块 %s 的内容", id),
			DocID:      docID,
			DocType:    types.DocTypeResume,
			ChunkIndex: chunkIndex,
		},
		RawScore: raw,
	}
}

// TestRetrieveFilteredPath 第一级：过滤查询成功直接返回归一化结果
func TestRetrieveFilteredPath(t *testing.T) {
	index := &fakeIndex{
		filtered: []types.ScoredChunk{
			rawChunk("a", "resume-1", 0, 0.9),
			rawChunk("b", "resume-1", 1, 0.6),
		},
	}

	got, err := NewRetriever(index).Retrieve(context.Background(), []float64{1, 0}, "resume-1", types.DocTypeResume, 10, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.875, got[0].Relevance, 1e-9)
	assert.InDelta(t, 0.5, got[1].Relevance, 1e-9)
}

// TestRetrieveDimensionMismatch 维度不一致必须直接失败，不做截断或补零
func TestRetrieveDimensionMismatch(t *testing.T) {
	index := &fakeIndex{dimension: 4}

	_, err := NewRetriever(index).Retrieve(context.Background(), []float64{1, 0}, "resume-1", types.DocTypeResume, 10, 0)

	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.QueryDim)
	assert.Equal(t, 4, mismatch.IndexDim)
}

// TestRetrieveUnfilteredFallback 第二级：过滤查询为空时放宽过滤，本地筛元数据
func TestRetrieveUnfilteredFallback(t *testing.T) {
	docMean := rawChunk("mean", "resume-1", types.DocMeanChunkIndex, 0.99)
	other := rawChunk("x", "resume-2", 0, 0.95)
	mine := rawChunk("a", "resume-1", 0, 0.8)

	index := &fakeIndex{
		filtered:   nil, // 过滤组合不被索引支持，合法地返回空
		unfiltered: []types.ScoredChunk{docMean, other, mine},
	}

	got, err := NewRetriever(index).Retrieve(context.Background(), []float64{1, 0}, "resume-1", types.DocTypeResume, 10, 1)

	require.NoError(t, err)
	require.Len(t, got, 1, "其他文档的分块和均值向量都要被本地过滤掉")
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 0.75, got[0].Relevance, 1e-9)
}

// TestRetrieveFetchByIDFallback 第三级：两级查询都无结果时按确定性ID重建
func TestRetrieveFetchByIDFallback(t *testing.T) {
	index := &fakeIndex{
		points: map[string]types.Chunk{
			"resume-1#0": {
				ID: "p0", Snippet: "Golang开发", DocID: "resume-1",
				DocType: types.DocTypeResume, ChunkIndex: 0,
				Vector: []float64{1, 0},
			},
			"resume-1#1": {
				ID: "p1", Snippet: "数据库调优", DocID: "resume-1",
				DocType: types.DocTypeResume, ChunkIndex: 1,
				Vector: []float64{0, 1},
			},
		},
	}

	got, err := NewRetriever(index).Retrieve(context.Background(), []float64{1, 0}, "resume-1", types.DocTypeResume, 10, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := make(map[string]types.ScoredChunk, len(got))
	for _, c := range got {
		byID[c.ID] = c
	}
	// 与查询向量同向：余弦1.0 -> 相关度1.0；正交：余弦0 -> 相关度0
	assert.InDelta(t, 1.0, byID["p0"].Relevance, 1e-9)
	assert.InDelta(t, 0.0, byID["p1"].Relevance, 1e-9)
}

// TestRetrieveAllLevelsFail 回退链全部失败才报错
func TestRetrieveAllLevelsFail(t *testing.T) {
	index := &fakeIndex{
		filteredErr:   fmt.Errorf("过滤查询不支持"),
		unfilteredErr: fmt.Errorf("索引不可达"),
		points:        map[string]types.Chunk{},
	}

	_, err := NewRetriever(index).Retrieve(context.Background(), []float64{1, 0}, "resume-1", types.DocTypeResume, 10, 2)
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 2}), "维度不一致返回0")
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 2}), "零向量返回0")
}

// TestSelectEvidence 去重与MMR的组合入口
func TestSelectEvidence(t *testing.T) {
	pool := []types.ScoredChunk{
		chunkWithSnippet("a", "Golang后端开发", 0.9),
		chunkWithSnippet("b", "Golang后端开发", 0.85), // 与a重复
		chunkWithSnippet("c", "数据库性能调优", 0.7),
	}

	got := SelectEvidence(pool, 5, 0)

	require.Len(t, got, 2, "精确重复的分块先被去掉")
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
