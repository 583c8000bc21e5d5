package types

// DocType 文档类型，区分简历与岗位描述
type DocType string

const (
	// DocTypeResume 简历文档
	DocTypeResume DocType = "resume"
	// DocTypeJobDescription 岗位描述文档
	DocTypeJobDescription DocType = "job_description"
)

// DistanceMetric 向量索引使用的距离度量
type DistanceMetric string

const (
	// MetricCosine 余弦相似度
	MetricCosine DistanceMetric = "cosine"
	// MetricEuclidean 欧氏距离
	MetricEuclidean DistanceMetric = "euclidean"
	// MetricDotProduct 点积
	MetricDotProduct DistanceMetric = "dotproduct"
)

// DocMeanChunkIndex 文档级均值向量的保留分块下标
const DocMeanChunkIndex = -1

// MaxSnippetLength 片段文本的最大长度（按rune计）
const MaxSnippetLength = 300

// Chunk 索引中的一个文本分块，创建后不可变。
// 重新处理文档时只新增替代点，不原地修改。
type Chunk struct {
	ID         string    `json:"id"`
	Snippet    string    `json:"snippet"`
	Vector     []float64 `json:"vector,omitempty"`
	DocID      string    `json:"doc_id"`
	DocType    DocType   `json:"doc_type"`
	ChunkIndex int       `json:"chunk_index"` // >=0 为真实分块，-1 保留给文档均值向量
}

// IsDocMean 判断该分块是否为文档级均值向量
func (c Chunk) IsDocMean() bool {
	return c.ChunkIndex == DocMeanChunkIndex
}

// ScoredChunk 带检索得分的分块，仅在单次查询的生命周期内存在。
// RawScore 是索引返回的原始相似度（依赖距离度量），
// Relevance 是归一化后的 [0,1] 相关度。
type ScoredChunk struct {
	Chunk
	RawScore  float64 `json:"raw_score"`
	Relevance float64 `json:"relevance"`
}

// SkillTier 技能权重层级
type SkillTier string

const (
	// SkillTierTop 核心技能，计分时权重 x2
	SkillTierTop SkillTier = "top"
	// SkillTierGeneral 一般技能，权重 x1
	SkillTierGeneral SkillTier = "general"
)

// SkillRecord 岗位要求的一项技能。
// Synonyms 的首个元素约定等于技能名本身；
// 技能与同义词表由外部抽取器提供，这里只做确定性的查找与缓存。
type SkillRecord struct {
	Name     string    `json:"name"`
	Synonyms []string  `json:"synonyms"`
	Tier     SkillTier `json:"tier"`
}

// Terms 返回用于词面匹配的全部词项（技能名 + 同义词，去空）。
func (s SkillRecord) Terms() []string {
	terms := make([]string, 0, len(s.Synonyms)+1)
	seen := make(map[string]struct{}, len(s.Synonyms)+1)
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	add(s.Name)
	for _, syn := range s.Synonyms {
		add(syn)
	}
	return terms
}

// MatchResult 一次简历-岗位匹配的最终结果，返回后不可变。
// Explanation 完全由数值字段派生，可随时重新生成。
type MatchResult struct {
	SemanticScore float64  `json:"semantic_score"`
	KeywordScore  float64  `json:"keyword_score"`
	YearsScore    float64  `json:"years_score"`
	FinalPercent  int      `json:"final_percent"`
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	ResumeYears   *int     `json:"resume_years,omitempty"`
	RequiredYears *int     `json:"required_years,omitempty"`
	Explanation   string   `json:"explanation"`
}
