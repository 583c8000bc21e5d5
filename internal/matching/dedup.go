package matching

import (
	"hash/fnv"
	"strings"

	"resume-match-go/internal/types"
)

// DedupeChunks 去除候选集中片段文本完全重复的分块，保留每个指纹的首次出现。
// 稳定且保序，纯函数；近似重复交给MMR的多样性项处理，这里只做精确去重。
func DedupeChunks(chunks []types.ScoredChunk) []types.ScoredChunk {
	if len(chunks) <= 1 {
		return chunks
	}

	seen := make(map[uint64]struct{}, len(chunks))
	result := make([]types.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		h := snippetFingerprint(c.Snippet)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		result = append(result, c)
	}
	return result
}

// snippetFingerprint 对归一化后的片段文本计算廉价哈希。
// 归一化：小写、压缩空白、去首尾空白。
func snippetFingerprint(snippet string) uint64 {
	normalized := normalizeSnippet(snippet)
	h := fnv.New64a()
	_, _ = h.Write([]byte(normalized))
	return h.Sum64()
}

func normalizeSnippet(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
