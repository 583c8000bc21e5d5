package matching

import (
	"context"
	"fmt"
	"math"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var evidenceTracer = otel.Tracer("resume-match-go/matching/evidence")

// DefaultExpectedChunks 直接按ID重建时的分块数预估上限
const DefaultExpectedChunks = 64

// relaxedFetchMultiplier 放宽过滤重试时扩大的候选倍数
const relaxedFetchMultiplier = 5

// SearchFilter 向量检索的元数据过滤条件
type SearchFilter struct {
	DocID          string
	DocType        types.DocType
	RealChunksOnly bool // 排除 chunk_index 为 -1 的文档均值向量
}

// VectorIndex 向量索引的消费侧契约。
// 过滤查询允许合法地返回空结果（例如索引不支持某种过滤组合），
// 调用方必须走本文件的回退链而不是直接报错。
type VectorIndex interface {
	// Search 近邻查询，返回带原始相似度的分块
	Search(ctx context.Context, vector []float64, topK int, filter *SearchFilter, withVectors bool) ([]types.ScoredChunk, error)
	// FetchPoint 按ID取单个分块，不存在时返回 nil
	FetchPoint(ctx context.Context, id string) (*types.Chunk, error)
	// FetchPoints 按ID批量取分块，缺失的ID静默跳过
	FetchPoints(ctx context.Context, ids []string) ([]types.Chunk, error)
	// Metric 返回索引的距离度量，实现方负责缓存
	Metric(ctx context.Context) (types.DistanceMetric, error)
	// PointID 计算某文档某分块的确定性点ID，用于按ID重建
	PointID(docID string, chunkIndex int) string
	// Dimension 索引配置的向量维度，未知时返回 0
	Dimension() int
}

// DimensionMismatchError 查询向量与索引维度不一致。
// 静默截断或补零都会污染分数，必须直接失败并带上两边的维度。
type DimensionMismatchError struct {
	QueryDim int
	IndexDim int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("向量维度不匹配: 查询向量维度=%d, 索引维度=%d", e.QueryDim, e.IndexDim)
}

// Retriever 封装证据分块的检索与归一化，内置三级回退链：
// 过滤查询 -> 无过滤查询+本地过滤 -> 确定性ID直取重建。
type Retriever struct {
	index VectorIndex
}

// NewRetriever 创建检索器
func NewRetriever(index VectorIndex) *Retriever {
	return &Retriever{index: index}
}

// Retrieve 为一个查询向量取回归一化后的候选分块。
// expectedChunks 是按ID重建时的分块数预估，<=0 时用默认值。
// 三级回退都失败才把错误抛给调用方。
func (r *Retriever) Retrieve(ctx context.Context, vector []float64, docID string, docType types.DocType, topK int, expectedChunks int) ([]types.ScoredChunk, error) {
	ctx, span := evidenceTracer.Start(ctx, "Retriever.Retrieve",
		trace.WithAttributes(
			attribute.String("doc.id", docID),
			attribute.Int("search.top_k", topK),
		))
	defer span.End()

	if dim := r.index.Dimension(); dim > 0 && len(vector) != dim {
		return nil, &DimensionMismatchError{QueryDim: len(vector), IndexDim: dim}
	}

	metric := r.metric(ctx)

	// 第一级：带过滤的近邻查询
	filter := &SearchFilter{DocID: docID, DocType: docType, RealChunksOnly: true}
	chunks, err := r.index.Search(ctx, vector, topK, filter, false)
	if err == nil && len(chunks) > 0 {
		span.SetAttributes(attribute.String("retrieve.path", "filtered"))
		return NormalizeChunks(chunks, metric), nil
	}
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("doc_id", docID).Msg("过滤查询失败，改用无过滤查询重试")
	}

	// 第二级：放宽过滤，一次有界重试，取回后本地过滤元数据
	chunks, err = r.index.Search(ctx, vector, topK*relaxedFetchMultiplier, nil, false)
	if err == nil {
		local := filterLocally(chunks, docID, docType)
		if len(local) > 0 {
			span.SetAttributes(attribute.String("retrieve.path", "unfiltered_local"))
			return NormalizeChunks(local, metric), nil
		}
	} else {
		logger.Ctx(ctx).Warn().Err(err).Str("doc_id", docID).Msg("无过滤查询也失败，改用按ID重建")
	}

	// 第三级：用确定性点ID直接取回文档分块，本地算相似度
	reconstructed, recErr := r.reconstructByIDs(ctx, vector, docID, expectedChunks)
	if recErr != nil {
		if err != nil {
			return nil, fmt.Errorf("检索回退链全部失败: %w", err)
		}
		return nil, recErr
	}
	span.SetAttributes(attribute.String("retrieve.path", "fetch_by_id"))
	return reconstructed, nil
}

func (r *Retriever) metric(ctx context.Context) types.DistanceMetric {
	metric, err := r.index.Metric(ctx)
	if err != nil || metric == "" {
		// 检测失败时按余弦处理
		return types.MetricCosine
	}
	return metric
}

func filterLocally(chunks []types.ScoredChunk, docID string, docType types.DocType) []types.ScoredChunk {
	result := make([]types.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.DocID != docID {
			continue
		}
		if docType != "" && c.DocType != docType {
			continue
		}
		if c.IsDocMean() {
			continue
		}
		result = append(result, c)
	}
	return result
}

// reconstructByIDs 生成 0..expectedChunks-1 的确定性点ID批量取回分块，
// 用查询向量与分块向量本地计算余弦相似度作为原始得分。
func (r *Retriever) reconstructByIDs(ctx context.Context, vector []float64, docID string, expectedChunks int) ([]types.ScoredChunk, error) {
	if expectedChunks <= 0 {
		expectedChunks = DefaultExpectedChunks
	}

	ids := make([]string, 0, expectedChunks)
	for i := 0; i < expectedChunks; i++ {
		ids = append(ids, r.index.PointID(docID, i))
	}

	fetched, err := r.index.FetchPoints(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("按ID重建分块失败: %w", err)
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("按ID重建未取到任何分块: doc_id=%s", docID)
	}

	result := make([]types.ScoredChunk, 0, len(fetched))
	for _, c := range fetched {
		if c.IsDocMean() || len(c.Vector) == 0 {
			continue
		}
		raw := cosineSimilarity(vector, c.Vector)
		result = append(result, types.ScoredChunk{
			Chunk:     c,
			RawScore:  raw,
			Relevance: NormalizeScore(raw, types.MetricCosine),
		})
	}
	return result, nil
}

// cosineSimilarity 两个向量的余弦相似度，维度不一致或零向量返回 0。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SelectEvidence 匹配打分与问答共用的证据选取入口：
// 先精确去重，再用MMR选出 k 个兼顾相关性与多样性的分块。
// lambda <= 0 时使用默认值。
func SelectEvidence(pool []types.ScoredChunk, k int, lambda float64) []types.ScoredChunk {
	if lambda <= 0 {
		lambda = DefaultMMRLambda
	}
	return SelectDiverse(DedupeChunks(pool), k, lambda)
}
