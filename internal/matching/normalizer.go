package matching

import (
	"math"

	"resume-match-go/internal/types"
)

// 各度量的归一化常量。
// 这些都是针对当前部署的embedding模型经验调参得到的值，
// 不要在没有评估数据的情况下重新推导。
const (
	// CosineNoiseFloor 实际简历/JD的余弦相似度集中在 0.2~1.0，
	// 低于 0.2 的一律视为噪声。
	CosineNoiseFloor = 0.2
	// DotProductMax 点积得分的饱和上限
	DotProductMax = 40.0
	// EuclideanMaxDist 欧氏距离的归一化上限
	EuclideanMaxDist = 10.0
)

// Clamp01 把数值收敛到 [0,1]，非有限值按 0 处理。
// 所有上游得分在加权前都必须经过这里，避免 NaN/Inf 污染最终分数。
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeScore 把索引返回的原始相似度映射为统一的 [0,1] 相关度。
// 未知度量按余弦处理（检测失败时的默认值也是余弦）。
func NormalizeScore(raw float64, metric types.DistanceMetric) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}

	switch metric {
	case types.MetricDotProduct:
		return Clamp01(raw / DotProductMax)
	case types.MetricEuclidean:
		return Clamp01(1 - raw/EuclideanMaxDist)
	case types.MetricCosine:
		fallthrough
	default:
		// 仿射重映射：0.2 以下视为噪声，0.2~1.0 拉伸到整个区间
		return Clamp01((raw - CosineNoiseFloor) / (1 - CosineNoiseFloor))
	}
}

// NormalizeChunks 对一批检索结果就地填充 Relevance 字段并返回。
func NormalizeChunks(chunks []types.ScoredChunk, metric types.DistanceMetric) []types.ScoredChunk {
	for i := range chunks {
		chunks[i].Relevance = NormalizeScore(chunks[i].RawScore, metric)
	}
	return chunks
}
