package matching

import (
	"fmt"
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSelectDiverseBasicContract k<=0 返回空集，候选不足k时原样返回
func TestSelectDiverseBasicContract(t *testing.T) {
	pool := []types.ScoredChunk{
		chunkWithSnippet("a", "分布式系统设计", 0.9),
		chunkWithSnippet("b", "消息队列实践", 0.7),
	}

	assert.Empty(t, SelectDiverse(pool, 0, DefaultMMRLambda))
	assert.Empty(t, SelectDiverse(pool, -1, DefaultMMRLambda))
	assert.Equal(t, pool, SelectDiverse(pool, 5, DefaultMMRLambda), "候选数不超过k时不做任何处理")
}

// TestSelectDiverseExactK 25个候选选10个，数量精确且种子是全局最高分
func TestSelectDiverseExactK(t *testing.T) {
	pool := make([]types.ScoredChunk, 0, 25)
	for i := 0; i < 25; i++ {
		snippet := fmt.Sprintf("负责第%d号项目的后端开发与运维", i)
		pool = append(pool, chunkWithSnippet(fmt.Sprintf("c%d", i), snippet, 0.3+0.02*float64(i)))
	}

	got := SelectDiverse(pool, 10, 0.6)

	require.Len(t, got, 10)
	assert.Equal(t, "c24", got[0].ID, "第一个选中的必须是全局最高相关度的分块")

	// 选出的分块互不重复
	seen := make(map[string]struct{})
	for _, c := range got {
		_, dup := seen[c.ID]
		assert.False(t, dup, "分块 %s 被重复选中", c.ID)
		seen[c.ID] = struct{}{}
	}
}

// TestSelectDiversePrefersDiversity 相关度接近时，与已选内容重复度低的分块应胜出
func TestSelectDiversePrefersDiversity(t *testing.T) {
	pool := []types.ScoredChunk{
		chunkWithSnippet("seed", "golang backend microservice development", 0.95),
		// 与种子几乎同词面的高分分块
		chunkWithSnippet("near-dup", "golang backend microservice development experience", 0.90),
		// 相关度略低但词面完全不同
		chunkWithSnippet("fresh", "postgresql schema tuning and migration", 0.80),
	}

	got := SelectDiverse(pool, 2, 0.6)

	require.Len(t, got, 2)
	assert.Equal(t, "seed", got[0].ID)
	assert.Equal(t, "fresh", got[1].ID, "MMR应惩罚与已选高度相似的分块")
}

// TestSelectDiverseDeterministic 相同输入必须产生相同输出
func TestSelectDiverseDeterministic(t *testing.T) {
	pool := make([]types.ScoredChunk, 0, 12)
	for i := 0; i < 12; i++ {
		pool = append(pool, chunkWithSnippet(fmt.Sprintf("c%d", i), fmt.Sprintf("条目 %d 的内容描述", i), 0.5))
	}

	first := SelectDiverse(pool, 4, 0.6)
	second := SelectDiverse(pool, 4, 0.6)
	assert.Equal(t, first, second)
}

func TestJaccardSimilarity(t *testing.T) {
	a := tokenSet("go redis mysql")
	b := tokenSet("go redis kafka")
	// 交集2 并集4
	assert.InDelta(t, 0.5, jaccardSimilarity(a, b), 1e-9)

	assert.Equal(t, 0.0, jaccardSimilarity(tokenSet(""), tokenSet("")), "两个空集合约定为0而不是NaN")
	assert.InDelta(t, 1.0, jaccardSimilarity(a, a), 1e-9)
}
