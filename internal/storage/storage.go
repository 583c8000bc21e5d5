package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
)

// Storage 存储管理器，聚合匹配引擎依赖的全部外部存储
type Storage struct {
	// 向量数据库
	Qdrant *Qdrant

	// 关系型数据库（文档存储）
	MySQL *MySQL

	// 键值存储（技能向量缓存）
	Redis *Redis
}

// NewStorage 按配置初始化各存储组件。
// 单个组件初始化失败记为警告继续，全部失败才返回错误——
// 部分能力降级好过整个服务起不来。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var initErrors []string

	if cfg.Qdrant.Endpoint != "" {
		qdrant, err := NewQdrant(&cfg.Qdrant)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Qdrant失败")
			initErrors = append(initErrors, fmt.Sprintf("Qdrant: %v", err))
		} else {
			storage.Qdrant = qdrant
			logger.Info().Str("endpoint", cfg.Qdrant.Endpoint).Msg("Qdrant客户端初始化成功")
		}
	}

	if cfg.MySQL.Host != "" {
		mysql, err := NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MySQL失败")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		} else {
			storage.MySQL = mysql
			logger.Info().Msg("MySQL初始化成功")
		}
	}

	if cfg.Redis.Address != "" {
		redis, err := NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else if err := redis.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Redis连接检查失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis ping: %v", err))
		} else {
			storage.Redis = redis
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis初始化成功")
		}
	} else {
		logger.Info().Msg("Redis未配置，技能向量只用进程内缓存")
	}

	if storage.Qdrant == nil && storage.MySQL == nil && storage.Redis == nil {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		logger.Warn().Strs("errors", initErrors).Msg("部分存储组件初始化失败，服务降级运行")
	}
	return storage, nil
}

// Close 释放全部存储连接
func (s *Storage) Close() {
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
