package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/matching"
	"resume-match-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var embeddingTracer = otel.Tracer("resume-match-go/embedding")

// maxBatchSize 单次批量请求的文本条数上限（服务端限制）
const maxBatchSize = 25

// 确保AliyunEmbedder实现了引擎的Embedder契约
var _ matching.Embedder = (*AliyunEmbedder)(nil)

// AliyunEmbedder 阿里云embedding客户端（OpenAI兼容端点）
type AliyunEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
}

// NewAliyunEmbedder 创建embedding客户端
func NewAliyunEmbedder(cfg config.EmbeddingConfig) (*AliyunEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API密钥不能为空")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}

	return &AliyunEmbedder{
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Dimensions 返回配置的向量维度
func (a *AliyunEmbedder) Dimensions() int {
	return a.dimensions
}

// Embed 生成单条文本的向量
func (a *AliyunEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := a.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding响应为空")
	}
	return vectors[0], nil
}

// EmbedMany 批量生成向量，结果顺序与输入一致。
// 超过服务端批量上限时分批请求。
func (a *AliyunEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	result := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := a.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// embeddingRequest OpenAI兼容的请求结构
type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// embeddingResponse OpenAI兼容的响应结构
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (a *AliyunEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	ctx, span := embeddingTracer.Start(ctx, "AliyunEmbedder.EmbedBatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("embedding.model", a.model),
			attribute.Int("embedding.batch_size", len(texts)),
		))
	defer span.End()

	reqBody := embeddingRequest{
		Input:          texts,
		Model:          a.model,
		Dimensions:     a.dimensions,
		EncodingFormat: "float",
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("序列化embedding请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, fmt.Errorf("embedding请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding API错误: status=%d, body=%s", resp.StatusCode, string(body))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return nil, err
	}

	var response embeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("解析embedding响应失败: %w", err)
	}
	if response.Error != nil {
		err := fmt.Errorf("embedding API返回错误: %s (%s)", response.Error.Message, response.Error.Type)
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}
	if len(response.Data) != len(texts) {
		err := fmt.Errorf("embedding结果数量(%d)与输入(%d)不符", len(response.Data), len(texts))
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}

	// 按Index回填，保证输出顺序与输入一致
	vectors := make([][]float64, len(texts))
	for _, d := range response.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding结果缺少第%d条", i)
		}
		if a.dimensions > 0 && len(v) != a.dimensions {
			err := fmt.Errorf("embedding维度不符: 期望%d, 实际%d", a.dimensions, len(v))
			tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
			return nil, err
		}
	}

	span.SetStatus(codes.Ok, "")
	return vectors, nil
}
