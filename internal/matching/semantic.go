package matching

import (
	"math"

	"resume-match-go/internal/types"
)

// 语义聚合相关常量
const (
	// RelevanceThreshold 低于此相关度的分块视为与岗位语义无关
	RelevanceThreshold = 0.2
	// semanticMaxChunks 参与加权的最大分块数
	semanticMaxChunks = 20
	// qualityBoostMax 质量加成上限
	qualityBoostMax = 0.20
	// coverageBoostMax 覆盖度加成上限
	coverageBoostMax = 0.05
	// qualityGateCount 质量加成的门槛：至少3个分块超过0.70才生效，
	// 防止单个高分离群点放大整体分数
	qualityGateCount = 3
)

// semanticWeights 前10位的固定递减权重表，总和约等于1。
// 重要性前置到最好的几个匹配上，长尾仍有边际贡献。
var semanticWeights = [10]float64{0.40, 0.25, 0.15, 0.10, 0.05, 0.025, 0.015, 0.01, 0.005, 0.003}

// positionWeight 返回第 i 位（从0起）的权重，10位以后按指数衰减。
func positionWeight(i int) float64 {
	if i < len(semanticWeights) {
		return semanticWeights[i]
	}
	return math.Exp(-0.2*float64(i-9)) * semanticWeights[len(semanticWeights)-1]
}

// ScoreSemantic 把按相关度降序排列、已归一化的分块列表聚合为一个
// 文档级语义得分，范围 [0,1]。
//
// 空列表得 0；全部低于阈值时返回 0.5*最高相关度 作为阻尼回退，
// 让孤立的弱匹配仍贡献一点信号而不是直接归零。
func ScoreSemantic(ranked []types.ScoredChunk) float64 {
	if len(ranked) == 0 {
		return 0
	}

	survivors := make([]types.ScoredChunk, 0, len(ranked))
	for _, c := range ranked {
		if c.Relevance >= RelevanceThreshold {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return Clamp01(0.5 * ranked[0].Relevance)
	}

	if len(survivors) > semanticMaxChunks {
		survivors = survivors[:semanticMaxChunks]
	}

	// 加权和。权重表总和约为1，因此追加一个达标分块永远不会降低得分。
	weighted := 0.0
	for i, c := range survivors {
		weighted += positionWeight(i) * c.Relevance
	}

	quality := qualityBoost(survivors)
	coverage := coverageBoost(len(survivors))

	score := Clamp01(weighted + quality + coverage)

	// 反假阳性保护：核心信号平庸时不允许靠加成凑出强匹配
	if weighted < 0.70 && score > 0.90 {
		score = 0.85
	}
	return score
}

// qualityBoost 按高分分块的数量给出有界加成。
// 统计 >=0.70 / >=0.85 / >=0.90 三档，门槛是至少3个分块过0.70。
func qualityBoost(chunks []types.ScoredChunk) float64 {
	var good, great, excellent int
	for _, c := range chunks {
		if c.Relevance >= 0.70 {
			good++
		}
		if c.Relevance >= 0.85 {
			great++
		}
		if c.Relevance >= 0.90 {
			excellent++
		}
	}
	if good < qualityGateCount {
		return 0
	}
	boost := 0.015*float64(good) + 0.02*float64(great) + 0.025*float64(excellent)
	if boost > qualityBoostMax {
		boost = qualityBoostMax
	}
	return boost
}

// coverageBoost 奖励话题覆盖的广度，15个分块封顶。
func coverageBoost(count int) float64 {
	n := count
	if n > 15 {
		n = 15
	}
	return coverageBoostMax * float64(n) / 15.0
}
