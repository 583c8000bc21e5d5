package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/matching"
	"resume-match-go/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var redisTracer = otel.Tracer("resume-match-go/storage/redis")

// ErrNotFound key不存在时的统一错误，包装底层的redis.Nil
var ErrNotFound = redis.Nil

// 确保Redis实现了技能向量缓存契约
var _ matching.SkillVectorStore = (*Redis)(nil)

// Redis 键值存储适配器，承载技能向量缓存
type Redis struct {
	Client         *redis.Client
	skillVectorTTL time.Duration
}

// NewRedisAdapter 创建Redis适配器并注册OpenTelemetry钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("redis配置不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册redis追踪钩子失败: %w", err)
	}

	ttl := time.Duration(cfg.SkillVectorTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	return &Redis{Client: client, skillVectorTTL: ttl}, nil
}

// Ping 检查连接
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// GetSkillVector 读取某岗位某技能的缓存向量。
// 未命中返回 (nil,false,nil)，调用方自行决定是否重新生成。
func (r *Redis) GetSkillVector(ctx context.Context, jobID, skill string) ([]float64, bool, error) {
	key := fmt.Sprintf(constants.KeyJobSkillVectors, jobID)
	raw, err := r.Client.HGet(ctx, key, skill).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取技能向量失败: %w", err)
	}

	var vector []float64
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		// 缓存内容损坏按未命中处理，覆盖写入会修复它
		return nil, false, nil
	}
	return vector, true, nil
}

// SetSkillVector 写入技能向量缓存。并发写同一字段last-writer-wins，
// embedding对相同输入是确定性的，重复写不影响正确性。
func (r *Redis) SetSkillVector(ctx context.Context, jobID, skill string, vector []float64) error {
	ctx, span := redisTracer.Start(ctx, "Redis.SetSkillVector",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("skill", skill),
		))
	defer span.End()

	data, err := json.Marshal(vector)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("序列化技能向量失败: %w", err)
	}

	key := fmt.Sprintf(constants.KeyJobSkillVectors, jobID)
	pipe := r.Client.Pipeline()
	pipe.HSet(ctx, key, skill, data)
	pipe.Expire(ctx, key, r.skillVectorTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入技能向量失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
