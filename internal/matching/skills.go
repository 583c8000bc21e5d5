package matching

import (
	"context"
	"sort"
	"sync"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"

	"golang.org/x/sync/errgroup"
)

// 技能匹配的阈值常量。都是经验调参值，保留为可覆盖的具名常量，
// 不要自行"修正"。
const (
	// DefaultSemanticThreshold top-3均分需要达到的语义阈值
	DefaultSemanticThreshold = 0.6
	// DefaultEvidenceThreshold 单个最佳证据需要达到的阈值
	DefaultEvidenceThreshold = 0.6
	// DefaultSkillTargetK 每个技能最终保留的证据分块数
	DefaultSkillTargetK = 10
	// defaultSkillConcurrency 技能并发处理的上限
	defaultSkillConcurrency = 5
)

// EvidenceSource 按查询向量取回归一化候选分块的能力，Retriever实现之
type EvidenceSource interface {
	Retrieve(ctx context.Context, vector []float64, docID string, docType types.DocType, topK, expectedChunks int) ([]types.ScoredChunk, error)
}

// SkillMatcherConfig 技能匹配参数，零值字段回落到默认常量
type SkillMatcherConfig struct {
	SemanticThreshold float64
	EvidenceThreshold float64
	TargetK           int
	Lambda            float64
	Concurrency       int
}

func (c SkillMatcherConfig) withDefaults() SkillMatcherConfig {
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = DefaultSemanticThreshold
	}
	if c.EvidenceThreshold <= 0 {
		c.EvidenceThreshold = DefaultEvidenceThreshold
	}
	if c.TargetK <= 0 {
		c.TargetK = DefaultSkillTargetK
	}
	if c.Lambda <= 0 {
		c.Lambda = DefaultMMRLambda
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultSkillConcurrency
	}
	return c
}

// SkillMatcher 逐技能判定简历证据是否支持匹配。
// 语义路径（top-3均分 + 最佳证据双阈值）和词面路径（技能或同义词
// 的词面包含）是两条各自独立的通路，命中其一即算匹配。
type SkillMatcher struct {
	source     EvidenceSource
	embeddings SkillEmbeddingProvider
	cfg        SkillMatcherConfig
}

// NewSkillMatcher 创建技能匹配器
func NewSkillMatcher(source EvidenceSource, embeddings SkillEmbeddingProvider, cfg SkillMatcherConfig) *SkillMatcher {
	return &SkillMatcher{
		source:     source,
		embeddings: embeddings,
		cfg:        cfg.withDefaults(),
	}
}

// SkillMatchOutcome 技能匹配结果。
// Matched 与 Missing 互不相交，并集等于全部必需技能，均保持输入顺序。
type SkillMatchOutcome struct {
	Matched  []string
	Missing  []string
	Score    float64
	Evidence map[string][]types.ScoredChunk
}

// MatchSkills 并发评估全部必需技能并计算关键词得分。
// 单个技能的embedding或检索失败只影响该技能（按未匹配计），
// 绝不中断整次匹配。
func (m *SkillMatcher) MatchSkills(ctx context.Context, jobID, resumeDocID string, skills []types.SkillRecord, expectedChunks int) SkillMatchOutcome {
	outcome := SkillMatchOutcome{
		Matched:  []string{},
		Missing:  []string{},
		Evidence: make(map[string][]types.ScoredChunk, len(skills)),
	}
	if len(skills) == 0 {
		return outcome
	}

	matched := make([]bool, len(skills))
	evidence := make([][]types.ScoredChunk, len(skills))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)

	for i, skill := range skills {
		g.Go(func() error {
			ok, ev, err := m.evaluateSkill(gctx, jobID, resumeDocID, skill, expectedChunks)
			if err != nil {
				// 故障隔离：该技能按未匹配处理，继续评估其余技能
				logger.Ctx(gctx).Warn().Err(err).
					Str("skill", skill.Name).
					Str("resume_doc_id", resumeDocID).
					Msg("技能评估失败，按未匹配计")
				return nil
			}
			mu.Lock()
			matched[i] = ok
			evidence[i] = ev
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var topTotal, topMatched, genTotal, genMatched int
	for i, skill := range skills {
		if matched[i] {
			outcome.Matched = append(outcome.Matched, skill.Name)
		} else {
			outcome.Missing = append(outcome.Missing, skill.Name)
		}
		if len(evidence[i]) > 0 {
			outcome.Evidence[skill.Name] = evidence[i]
		}
		if skill.Tier == types.SkillTierTop {
			topTotal++
			if matched[i] {
				topMatched++
			}
		} else {
			genTotal++
			if matched[i] {
				genMatched++
			}
		}
	}

	// 核心技能权重x2
	denominator := 2*topTotal + genTotal
	if denominator > 0 {
		outcome.Score = float64(2*topMatched+genMatched) / float64(denominator)
	}
	return outcome
}

// evaluateSkill 评估单个技能：检索证据、选取、双通路判定。
func (m *SkillMatcher) evaluateSkill(ctx context.Context, jobID, resumeDocID string, skill types.SkillRecord, expectedChunks int) (bool, []types.ScoredChunk, error) {
	vector, err := m.embeddings.SkillEmbedding(ctx, jobID, skill.Name)
	if err != nil {
		return false, nil, err
	}

	pool, err := m.source.Retrieve(ctx, vector, resumeDocID, types.DocTypeResume, 2*m.cfg.TargetK, expectedChunks)
	if err != nil {
		return false, nil, err
	}

	selected := SelectEvidence(pool, m.cfg.TargetK, m.cfg.Lambda)
	if len(selected) == 0 {
		return false, nil, nil
	}

	agg, top := aggregateEvidence(selected)

	if agg >= m.cfg.SemanticThreshold && top >= m.cfg.EvidenceThreshold {
		return true, selected, nil
	}

	// 词面通路：证据片段包含技能或任一同义词即算匹配
	terms := skill.Terms()
	for _, chunk := range selected {
		if SnippetContainsAnyTerm(chunk.Snippet, terms) {
			return true, selected, nil
		}
	}
	return false, selected, nil
}

// aggregateEvidence 返回 top-3 相关度均值与单个最佳相关度。
func aggregateEvidence(chunks []types.ScoredChunk) (agg, top float64) {
	relevances := make([]float64, 0, len(chunks))
	for _, c := range chunks {
		relevances = append(relevances, c.Relevance)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(relevances)))

	top = relevances[0]
	n := 3
	if len(relevances) < n {
		n = len(relevances)
	}
	sum := 0.0
	for _, r := range relevances[:n] {
		sum += r
	}
	agg = sum / float64(n)
	return agg, top
}
