package matching

import (
	"fmt"
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func rankedChunks(relevances ...float64) []types.ScoredChunk {
	chunks := make([]types.ScoredChunk, 0, len(relevances))
	for i, r := range relevances {
		chunks = append(chunks, chunkWithSnippet(fmt.Sprintf("c%d", i), fmt.Sprintf("片段%d", i), r))
	}
	return chunks
}

func TestScoreSemanticEmpty(t *testing.T) {
	assert.Equal(t, 0.0, ScoreSemantic(nil))
	assert.Equal(t, 0.0, ScoreSemantic([]types.ScoredChunk{}))
}

// TestScoreSemanticDampedFallback 全部低于阈值时返回 0.5*最高相关度
func TestScoreSemanticDampedFallback(t *testing.T) {
	got := ScoreSemantic(rankedChunks(0.18, 0.1, 0.05))
	assert.InDelta(t, 0.09, got, 1e-9)
}

// TestScoreSemanticWeightedSum 验证位置权重加权的核心路径
func TestScoreSemanticWeightedSum(t *testing.T) {
	// 三个达标分块：0.4*0.875 + 0.25*0.75 + 0.15*0.625 = 0.63125
	// 高分(>=0.70)只有2个不过质量门槛，覆盖加成 0.05*3/15 = 0.01
	got := ScoreSemantic(rankedChunks(0.875, 0.75, 0.625, 0.125))
	assert.InDelta(t, 0.64125, got, 1e-9)
}

// TestScoreSemanticQualityGate 质量加成需要至少3个分块过0.70
func TestScoreSemanticQualityGate(t *testing.T) {
	// 3个过0.70，其中1个过0.85：0.015*3 + 0.02*1 = 0.065
	relevances := []float64{0.86, 0.75, 0.72}
	weighted := 0.4*0.86 + 0.25*0.75 + 0.15*0.72
	coverage := 0.05 * 3.0 / 15.0
	expected := weighted + 0.065 + coverage

	got := ScoreSemantic(rankedChunks(relevances...))
	assert.InDelta(t, expected, got, 1e-9)
}

// TestScoreSemanticMonotonicity 追加一个达标分块绝不降低得分
func TestScoreSemanticMonotonicity(t *testing.T) {
	base := []float64{0.65, 0.6, 0.55, 0.5, 0.45}
	before := ScoreSemantic(rankedChunks(base...))

	for _, extra := range []float64{0.45, 0.35, 0.25, 0.2} {
		after := ScoreSemantic(rankedChunks(append(append([]float64{}, base...), extra)...))
		assert.GreaterOrEqual(t, after, before,
			"追加相关度 %.2f 的分块后得分从 %.4f 降到 %.4f", extra, before, after)
	}
}

// TestScoreSemanticBounded 加权和、质量加成、覆盖加成叠满也不能越界
func TestScoreSemanticBounded(t *testing.T) {
	relevances := make([]float64, 25)
	for i := range relevances {
		relevances[i] = 1.0
	}
	got := ScoreSemantic(rankedChunks(relevances...))
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestPositionWeightDecay(t *testing.T) {
	// 前10位用固定表，之后指数衰减且严格递减
	assert.Equal(t, 0.40, positionWeight(0))
	assert.Equal(t, 0.003, positionWeight(9))
	for i := 10; i < 15; i++ {
		assert.Less(t, positionWeight(i), positionWeight(i-1))
		assert.Greater(t, positionWeight(i), 0.0)
	}
}
