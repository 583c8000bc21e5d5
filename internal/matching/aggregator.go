package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var matchTracer = otel.Tracer("resume-match-go/matching")

// DefaultCandidatePoolSize 语义打分阶段从索引取回的候选分块数
const DefaultCandidatePoolSize = 50

// DocStatusIndexed 文档完成索引后的状态值
const DocStatusIndexed = "INDEXED"

// Document 文档存储返回的文档视图。
// Skills 与 RequiredYears 只在岗位描述上有意义。
type Document struct {
	ID            string
	Type          types.DocType
	RawText       string
	Status        string
	Skills        []types.SkillRecord
	RequiredYears *int
	ChunkCount    int
}

// DocumentStore 文档存储的消费侧契约
type DocumentStore interface {
	GetDocument(ctx context.Context, docID string) (*Document, error)
}

// DocumentNotFoundError 文档不存在，不可重试，直接透传给调用方
type DocumentNotFoundError struct {
	DocID string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("文档不存在: doc_id=%s", e.DocID)
}

// DocumentNotIndexedError 文档尚未完成索引，携带当前状态
type DocumentNotIndexedError struct {
	DocID  string
	Status string
}

func (e *DocumentNotIndexedError) Error() string {
	return fmt.Sprintf("文档尚未完成索引: doc_id=%s, status=%s", e.DocID, e.Status)
}

// Weights 三路信号的固定权重，必须归一
type Weights struct {
	Semantic float64 `yaml:"semantic" json:"semantic"`
	Keyword  float64 `yaml:"keyword" json:"keyword"`
	Years    float64 `yaml:"years" json:"years"`
}

// DefaultWeights 参考权重：语义0.40 关键词0.55 年限0.05
func DefaultWeights() Weights {
	return Weights{Semantic: 0.40, Keyword: 0.55, Years: 0.05}
}

// Validate 校验权重非负且和为1（容差1e-6）
func (w Weights) Validate() error {
	if w.Semantic < 0 || w.Keyword < 0 || w.Years < 0 {
		return fmt.Errorf("权重不能为负: %+v", w)
	}
	sum := w.Semantic + w.Keyword + w.Years
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("权重之和必须为1, 实际为 %.6f", sum)
	}
	return nil
}

// Matcher 匹配编排器：聚合语义打分、技能匹配与经验抽取，
// 输出有界、可解释的最终分数。
type Matcher struct {
	docs       DocumentStore
	index      VectorIndex
	source     EvidenceSource
	embedder   Embedder
	skills     *SkillMatcher
	experience *ExperienceExtractor
	weights    Weights
	poolSize   int
}

// MatcherOption Matcher构造选项
type MatcherOption func(*Matcher)

// WithWeights 覆盖默认权重
func WithWeights(w Weights) MatcherOption {
	return func(m *Matcher) {
		m.weights = w
	}
}

// WithCandidatePoolSize 覆盖候选池大小
func WithCandidatePoolSize(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.poolSize = n
		}
	}
}

// WithExperienceExtractor 注入经验抽取器（测试时固定时间用）
func WithExperienceExtractor(e *ExperienceExtractor) MatcherOption {
	return func(m *Matcher) {
		m.experience = e
	}
}

// NewMatcher 创建匹配编排器
func NewMatcher(docs DocumentStore, index VectorIndex, source EvidenceSource, embedder Embedder, skills *SkillMatcher, opts ...MatcherOption) (*Matcher, error) {
	m := &Matcher{
		docs:       docs,
		index:      index,
		source:     source,
		embedder:   embedder,
		skills:     skills,
		experience: NewExperienceExtractor(),
		weights:    DefaultWeights(),
		poolSize:   DefaultCandidatePoolSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.weights.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// CalculateMatch 计算一份简历与一个岗位的匹配结果。
// weights 为 nil 时使用构造时的权重。
func (m *Matcher) CalculateMatch(ctx context.Context, resumeDocID, jobDocID string, weights *Weights) (*types.MatchResult, error) {
	ctx, span := matchTracer.Start(ctx, "Matcher.CalculateMatch",
		trace.WithAttributes(
			attribute.String("resume.doc_id", resumeDocID),
			attribute.String("job.doc_id", jobDocID),
		))
	defer span.End()

	w := m.weights
	if weights != nil {
		if err := weights.Validate(); err != nil {
			return nil, err
		}
		w = *weights
	}

	// 1. 前置条件：两份文档都必须存在且已完成索引
	resume, err := m.loadIndexedDocument(ctx, resumeDocID)
	if err != nil {
		return nil, err
	}
	job, err := m.loadIndexedDocument(ctx, jobDocID)
	if err != nil {
		return nil, err
	}

	// 2. 岗位文档向量：优先取索引中的文档均值向量，缺失时现场embed
	jobVector, err := m.jobVector(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("获取岗位向量失败: %w", err)
	}

	// 3. 语义得分：检索简历候选池 -> 去重 -> 降序 -> 聚合
	pool, err := m.source.Retrieve(ctx, jobVector, resume.ID, types.DocTypeResume, m.poolSize, resume.ChunkCount)
	if err != nil {
		return nil, fmt.Errorf("检索简历分块失败: %w", err)
	}
	ranked := DedupeChunks(pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	semanticScore := ScoreSemantic(ranked)

	// 4. 技能匹配
	outcome := m.skills.MatchSkills(ctx, job.ID, resume.ID, job.Skills, resume.ChunkCount)

	// 5. 经验年限
	resumeYears := m.extractYears(resume.RawText)
	requiredYears := job.RequiredYears
	if requiredYears == nil {
		// 岗位记录里没写要求时尝试从JD原文抽取
		requiredYears = m.extractYears(job.RawText)
	}
	yearsScore := YearsScore(requiredYears, resumeYears)

	// 6. 加权合成：每路信号先clamp再加权，总分clamp后取整
	semanticScore = Clamp01(semanticScore)
	keywordScore := Clamp01(outcome.Score)
	yearsScore = Clamp01(yearsScore)

	final := Clamp01(w.Semantic*semanticScore + w.Keyword*keywordScore + w.Years*yearsScore)
	finalPercent := int(math.Round(final * 100))

	result := &types.MatchResult{
		SemanticScore: semanticScore,
		KeywordScore:  keywordScore,
		YearsScore:    yearsScore,
		FinalPercent:  finalPercent,
		MatchedSkills: outcome.Matched,
		MissingSkills: outcome.Missing,
		ResumeYears:   resumeYears,
		RequiredYears: requiredYears,
	}
	result.Explanation = BuildExplanation(result)

	logger.Ctx(ctx).Info().
		Str("resume_doc_id", resumeDocID).
		Str("job_doc_id", jobDocID).
		Int("final_percent", finalPercent).
		Float64("semantic", semanticScore).
		Float64("keyword", keywordScore).
		Float64("years", yearsScore).
		Msg("匹配计算完成")
	span.SetAttributes(attribute.Int("match.final_percent", finalPercent))

	return result, nil
}

func (m *Matcher) loadIndexedDocument(ctx context.Context, docID string) (*Document, error) {
	doc, err := m.docs.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &DocumentNotFoundError{DocID: docID}
	}
	if doc.Status != DocStatusIndexed {
		return nil, &DocumentNotIndexedError{DocID: docID, Status: doc.Status}
	}
	return doc, nil
}

// jobVector 取岗位的文档级向量：索引里的保留均值点优先，miss时embed原文。
func (m *Matcher) jobVector(ctx context.Context, job *Document) ([]float64, error) {
	pointID := m.index.PointID(job.ID, types.DocMeanChunkIndex)
	chunk, err := m.index.FetchPoint(ctx, pointID)
	if err == nil && chunk != nil && len(chunk.Vector) > 0 {
		return chunk.Vector, nil
	}
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("job_doc_id", job.ID).Msg("取岗位均值向量失败，改为现场embed")
	}
	return m.embedder.Embed(ctx, job.RawText)
}

func (m *Matcher) extractYears(text string) *int {
	years, ok := m.experience.ExtractYears(text)
	if !ok {
		return nil
	}
	return &years
}

// BuildExplanation 由数值字段生成模板化的匹配说明。
// 说明是派生数据，任何时候都能仅凭数值字段重新生成。
func BuildExplanation(r *types.MatchResult) string {
	var b strings.Builder

	switch {
	case r.SemanticScore >= 0.75:
		b.WriteString("语义匹配强")
	case r.SemanticScore >= 0.5:
		b.WriteString("语义匹配中等")
	default:
		b.WriteString("语义匹配弱")
	}
	fmt.Fprintf(&b, "（%.0f%%）。", r.SemanticScore*100)

	total := len(r.MatchedSkills) + len(r.MissingSkills)
	if total > 0 {
		switch {
		case r.KeywordScore >= 0.8:
			b.WriteString("技能覆盖优秀")
		case r.KeywordScore >= 0.5:
			b.WriteString("技能覆盖良好")
		default:
			b.WriteString("技能覆盖不足")
		}
		fmt.Fprintf(&b, "，命中 %d/%d 项必需技能。", len(r.MatchedSkills), total)
		if len(r.MatchedSkills) > 0 {
			fmt.Fprintf(&b, "已具备：%s。", strings.Join(truncateList(r.MatchedSkills, 3), "、"))
		}
		if len(r.MissingSkills) > 0 {
			fmt.Fprintf(&b, "缺少：%s。", strings.Join(truncateList(r.MissingSkills, 3), "、"))
		}
	}

	switch {
	case r.RequiredYears == nil:
		if r.ResumeYears != nil {
			fmt.Fprintf(&b, "岗位未限定年限，候选人约有 %d 年经验。", *r.ResumeYears)
		} else {
			b.WriteString("岗位未限定经验年限。")
		}
	case r.ResumeYears == nil:
		fmt.Fprintf(&b, "岗位要求 %d 年经验，但简历中未能识别出年限。", *r.RequiredYears)
	case *r.ResumeYears >= *r.RequiredYears:
		fmt.Fprintf(&b, "经验满足要求（%d 年 / 要求 %d 年）。", *r.ResumeYears, *r.RequiredYears)
	default:
		fmt.Fprintf(&b, "经验略低于要求（%d 年 / 要求 %d 年）。", *r.ResumeYears, *r.RequiredYears)
	}

	return b.String()
}

func truncateList(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
