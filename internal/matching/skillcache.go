package matching

import (
	"context"
	"fmt"
	"sync"

	"resume-match-go/internal/logger"

	"golang.org/x/sync/singleflight"
)

// skillContextTemplate 技能语境化embedding的模板。
// 裸技能词的embedding区分度太差，补一句语境能显著改善检索质量。
const skillContextTemplate = "Skill: %s - technical expertise and experience"

// Embedder embedding生成器的消费侧契约
type Embedder interface {
	// Embed 生成单条文本的定长向量
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedMany 批量生成，保持输入顺序
	EmbedMany(ctx context.Context, texts []string) ([][]float64, error)
}

// SkillVectorStore 技能向量的持久缓存（按岗位分组）。
// 实现方缺失时返回实现方定义的未命中错误即可。
type SkillVectorStore interface {
	GetSkillVector(ctx context.Context, jobID, skill string) ([]float64, bool, error)
	SetSkillVector(ctx context.Context, jobID, skill string, vector []float64) error
}

// SkillEmbeddingProvider 按技能名提供语境化embedding
type SkillEmbeddingProvider interface {
	SkillEmbedding(ctx context.Context, jobID, skill string) ([]float64, error)
}

// SkillEmbeddingCache 技能embedding的两级缓存：进程内map在前，
// 外部存储（redis）在后，singleflight合并同键并发计算。
// embedding对同一文本是确定性的，并发写入last-writer-wins不影响正确性。
type SkillEmbeddingCache struct {
	embedder Embedder
	store    SkillVectorStore // 可为nil，此时只有进程内缓存

	mu    sync.RWMutex
	local map[string][]float64
	group singleflight.Group
}

// NewSkillEmbeddingCache 创建技能embedding缓存
func NewSkillEmbeddingCache(embedder Embedder, store SkillVectorStore) *SkillEmbeddingCache {
	return &SkillEmbeddingCache{
		embedder: embedder,
		store:    store,
		local:    make(map[string][]float64),
	}
}

// SkillEmbedding 返回技能的语境化embedding，懒生成并跨请求复用。
func (c *SkillEmbeddingCache) SkillEmbedding(ctx context.Context, jobID, skill string) ([]float64, error) {
	key := jobID + "|" + skill

	c.mu.RLock()
	if vec, ok := c.local[key]; ok {
		c.mu.RUnlock()
		return vec, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.load(ctx, jobID, skill, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

func (c *SkillEmbeddingCache) load(ctx context.Context, jobID, skill, key string) ([]float64, error) {
	if c.store != nil {
		vec, ok, err := c.store.GetSkillVector(ctx, jobID, skill)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("skill", skill).Msg("读取技能向量缓存失败，回退到重新生成")
		} else if ok && len(vec) > 0 {
			c.remember(key, vec)
			return vec, nil
		}
	}

	text := fmt.Sprintf(skillContextTemplate, skill)
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("生成技能embedding失败: skill=%s: %w", skill, err)
	}

	c.remember(key, vec)
	if c.store != nil {
		if err := c.store.SetSkillVector(ctx, jobID, skill, vec); err != nil {
			// 缓存写失败不致命，下次重算
			logger.Ctx(ctx).Warn().Err(err).Str("skill", skill).Msg("写入技能向量缓存失败")
		}
	}
	return vec, nil
}

func (c *SkillEmbeddingCache) remember(key string, vec []float64) {
	c.mu.Lock()
	c.local[key] = vec
	c.mu.Unlock()
}
