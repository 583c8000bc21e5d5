package handler

import (
	"context"
	"errors"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/matching"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
)

// MatchHandler 处理匹配计算与证据检索请求
type MatchHandler struct {
	matcher   *matching.Matcher
	retriever matching.EvidenceSource
	embedder  matching.Embedder
}

// NewMatchHandler 创建MatchHandler
func NewMatchHandler(matcher *matching.Matcher, retriever matching.EvidenceSource, embedder matching.Embedder) *MatchHandler {
	return &MatchHandler{
		matcher:   matcher,
		retriever: retriever,
		embedder:  embedder,
	}
}

// MatchRequest 匹配计算请求体
type MatchRequest struct {
	ResumeID string            `json:"resume_id"`
	JobID    string            `json:"job_id"`
	Weights  *matching.Weights `json:"weights,omitempty"`
}

// HandleCalculateMatch 计算简历与岗位的匹配结果。
// POST /api/v1/match
func (h *MatchHandler) HandleCalculateMatch(ctx context.Context, c *app.RequestContext) {
	var req MatchRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}
	if req.ResumeID == "" || req.JobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "resume_id 和 job_id 不能为空"})
		return
	}

	requestID := uuid.NewString()
	log := logger.Logger.With().
		Str("request_id", requestID).
		Str("resume_id", req.ResumeID).
		Str("job_id", req.JobID).
		Logger()
	ctx = log.WithContext(ctx)

	result, err := h.matcher.CalculateMatch(ctx, req.ResumeID, req.JobID, req.Weights)
	if err != nil {
		status, msg := classifyMatchError(err)
		log.Error().Err(err).Int("status", status).Msg("匹配计算失败")
		c.JSON(status, utils.H{"error": msg, "request_id": requestID})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"request_id": requestID, "result": result})
}

// EvidenceRequest 证据检索请求体（问答路径）
type EvidenceRequest struct {
	DocID    string  `json:"doc_id"`
	Question string  `json:"question"`
	TopK     int     `json:"top_k"`
	Lambda   float64 `json:"lambda"`
}

// EvidenceItem 返回给调用方的证据片段
type EvidenceItem struct {
	ChunkID   string  `json:"chunk_id"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// HandleSelectEvidence 为自由文本问题选取证据分块，
// 与匹配打分共用同一套去重+MMR选取逻辑。
// POST /api/v1/evidence
func (h *MatchHandler) HandleSelectEvidence(ctx context.Context, c *app.RequestContext) {
	var req EvidenceRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}
	if req.DocID == "" || req.Question == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "doc_id 和 question 不能为空"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	vector, err := h.embedder.Embed(ctx, req.Question)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("问题embedding失败")
		c.JSON(consts.StatusBadGateway, utils.H{"error": "生成问题向量失败"})
		return
	}

	pool, err := h.retriever.Retrieve(ctx, vector, req.DocID, "", 2*req.TopK, 0)
	if err != nil {
		status, msg := classifyMatchError(err)
		logger.Ctx(ctx).Error().Err(err).Msg("证据检索失败")
		c.JSON(status, utils.H{"error": msg})
		return
	}

	selected := matching.SelectEvidence(pool, req.TopK, req.Lambda)
	items := make([]EvidenceItem, 0, len(selected))
	for _, chunk := range selected {
		items = append(items, EvidenceItem{
			ChunkID:   chunk.ID,
			Snippet:   chunk.Snippet,
			Relevance: chunk.Relevance,
		})
	}
	c.JSON(consts.StatusOK, utils.H{"evidence": items})
}

// classifyMatchError 把引擎错误映射到HTTP状态码。
// 前置条件错误原样透传给调用方，可恢复错误在引擎内部已经消化。
func classifyMatchError(err error) (int, string) {
	var notFound *matching.DocumentNotFoundError
	if errors.As(err, &notFound) {
		return consts.StatusNotFound, notFound.Error()
	}
	var notIndexed *matching.DocumentNotIndexedError
	if errors.As(err, &notIndexed) {
		return consts.StatusConflict, notIndexed.Error()
	}
	var dimMismatch *matching.DimensionMismatchError
	if errors.As(err, &dimMismatch) {
		return consts.StatusUnprocessableEntity, dimMismatch.Error()
	}
	return consts.StatusInternalServerError, "匹配计算失败"
}
