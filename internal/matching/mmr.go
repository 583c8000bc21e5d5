package matching

import (
	"sort"
	"strings"

	"resume-match-go/internal/types"
)

// DefaultMMRLambda MMR默认的相关性权重：60%相关性，40%多样性
const DefaultMMRLambda = 0.6

// SelectDiverse 用最大边际相关（MMR）从候选池中贪心挑选 k 个兼顾相关性与
// 多样性的分块。结果长度恒为 min(k, len(chunks))；候选数不超过 k 时原样返回。
//
// 贪心解不是全局最优，这是刻意接受的近似。片段间相似度用小写分词后的
// 词集合Jaccard衡量，同样是刻意保留的粗粒度代理，换成embedding余弦
// 会改变选择行为和下游分数。
func SelectDiverse(chunks []types.ScoredChunk, k int, lambda float64) []types.ScoredChunk {
	if k <= 0 {
		return []types.ScoredChunk{}
	}
	if len(chunks) <= k {
		return chunks
	}

	// 按相关度降序，稳定排序保证相同输入顺序下结果确定（平分按原始顺序）
	ordered := make([]types.ScoredChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Relevance > ordered[j].Relevance
	})

	tokenSets := make([]map[string]struct{}, len(ordered))
	for i := range ordered {
		tokenSets[i] = tokenSet(ordered[i].Snippet)
	}

	selected := make([]types.ScoredChunk, 0, k)
	selectedTokens := make([]map[string]struct{}, 0, k)
	used := make([]bool, len(ordered))

	// 以全局最高相关度的分块作为种子
	selected = append(selected, ordered[0])
	selectedTokens = append(selectedTokens, tokenSets[0])
	used[0] = true

	for len(selected) < k {
		bestIdx := -1
		bestScore := 0.0
		for i := range ordered {
			if used[i] {
				continue
			}
			maxSim := 0.0
			for _, st := range selectedTokens {
				if sim := jaccardSimilarity(tokenSets[i], st); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*ordered[i].Relevance - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, ordered[bestIdx])
		selectedTokens = append(selectedTokens, tokenSets[bestIdx])
	}

	return selected
}

// jaccardSimilarity 计算两个词集合的Jaccard相似度（交集/并集）。
// 两个集合都为空时返回 0 而不是 NaN。
func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
