package matching

import (
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func chunkWithSnippet(id, snippet string, relevance float64) types.ScoredChunk {
	return types.ScoredChunk{
		Chunk:     types.Chunk{ID: id, Snippet: snippet},
		Relevance: relevance,
	}
}

// TestDedupeChunksKeepsFirstOccurrence 重复指纹只保留首次出现的分块
func TestDedupeChunksKeepsFirstOccurrence(t *testing.T) {
	input := []types.ScoredChunk{
		chunkWithSnippet("a", "负责微服务架构设计", 0.9),
		chunkWithSnippet("b", "负责微服务架构设计", 0.8),
		chunkWithSnippet("c", "熟悉Kubernetes部署", 0.7),
	}

	got := DedupeChunks(input)

	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID, "应保留首个出现的分块")
	assert.Equal(t, "c", got[1].ID)
}

// TestDedupeChunksNormalization 大小写和空白差异视为同一片段
func TestDedupeChunksNormalization(t *testing.T) {
	input := []types.ScoredChunk{
		chunkWithSnippet("a", "Built CI/CD pipelines with Jenkins", 0.9),
		chunkWithSnippet("b", "  built   ci/cd PIPELINES with  jenkins ", 0.8),
	}

	got := DedupeChunks(input)

	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

// TestDedupeChunksIdempotent 去重后的集合再去重必须原样返回
func TestDedupeChunksIdempotent(t *testing.T) {
	input := []types.ScoredChunk{
		chunkWithSnippet("a", "Golang后端开发", 0.9),
		chunkWithSnippet("b", "Golang后端开发", 0.85),
		chunkWithSnippet("c", "数据库调优", 0.7),
		chunkWithSnippet("d", "前端React经验", 0.5),
	}

	once := DedupeChunks(input)
	twice := DedupeChunks(once)

	assert.Equal(t, once, twice)
}

func TestDedupeChunksSmallInputs(t *testing.T) {
	assert.Empty(t, DedupeChunks(nil))

	single := []types.ScoredChunk{chunkWithSnippet("a", "仅此一条", 0.5)}
	assert.Equal(t, single, DedupeChunks(single))
}
