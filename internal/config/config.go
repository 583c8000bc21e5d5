package config

import (
	"fmt"
	"os"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/tracing"

	"gopkg.in/yaml.v3"
)

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Address string   `yaml:"address"`  // 监听地址，如 :8080
	APIKeys []string `yaml:"api_keys"` // keyauth中间件接受的API Key列表
}

// QdrantConfig 向量数据库配置
type QdrantConfig struct {
	Endpoint           string `yaml:"endpoint"`
	Collection         string `yaml:"collection"`
	Dimension          int    `yaml:"dimension"`
	APIKey             string `yaml:"api_key,omitempty"`
	DefaultSearchLimit int    `yaml:"default_search_limit"`
}

// MySQLConfig 关系型数据库配置
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
	LogLevel string `yaml:"log_level"` // silent, error, warn, info
}

// DSN 拼接GORM使用的数据源串
func (c *MySQLConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, charset)
}

// RedisConfig 键值存储配置
type RedisConfig struct {
	Address      string `yaml:"address"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns"`
	// 技能向量缓存的过期时间(小时)
	SkillVectorTTLHours int `yaml:"skill_vector_ttl_hours"`
}

// EmbeddingConfig embedding服务配置（OpenAI兼容端点）
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// MatcherConfig 匹配引擎的可调参数。
// 阈值都是经验值，部署时按评估数据覆盖，不要凭感觉改。
type MatcherConfig struct {
	SemanticWeight    float64 `yaml:"semantic_weight"`
	KeywordWeight     float64 `yaml:"keyword_weight"`
	YearsWeight       float64 `yaml:"years_weight"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	EvidenceThreshold float64 `yaml:"evidence_threshold"`
	TargetK           int     `yaml:"target_k"`
	MMRLambda         float64 `yaml:"mmr_lambda"`
	CandidatePoolSize int     `yaml:"candidate_pool_size"`
}

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Tracing   tracing.Config  `yaml:"tracing"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matcher   MatcherConfig   `yaml:"matcher"`
}

// LoadConfig 从yaml文件加载配置并套用环境变量与默认值。
// path为空时依次尝试 config.yaml、internal/config/config.yaml。
func LoadConfig(path string) (*Config, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{"config.yaml", "internal/config/config.yaml"}
	}

	var data []byte
	var err error
	for _, p := range candidates {
		if p == "" {
			continue
		}
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides 敏感项允许用环境变量覆盖文件内容
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.MySQL.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.Qdrant.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Qdrant.Endpoint == "" {
		c.Qdrant.Endpoint = "http://localhost:6333"
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "doc_chunks"
	}
	if c.Qdrant.Dimension <= 0 {
		c.Qdrant.Dimension = 1024
	}
	if c.Qdrant.DefaultSearchLimit <= 0 {
		c.Qdrant.DefaultSearchLimit = 10
	}
	if c.Redis.SkillVectorTTLHours <= 0 {
		c.Redis.SkillVectorTTLHours = 72
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-v3"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	// 权重全零视为未配置，回落到参考权重
	if c.Matcher.SemanticWeight == 0 && c.Matcher.KeywordWeight == 0 && c.Matcher.YearsWeight == 0 {
		c.Matcher.SemanticWeight = 0.40
		c.Matcher.KeywordWeight = 0.55
		c.Matcher.YearsWeight = 0.05
	}
	if c.Matcher.SemanticThreshold == 0 {
		c.Matcher.SemanticThreshold = 0.6
	}
	if c.Matcher.EvidenceThreshold == 0 {
		c.Matcher.EvidenceThreshold = 0.6
	}
	if c.Matcher.TargetK == 0 {
		c.Matcher.TargetK = 10
	}
	if c.Matcher.MMRLambda == 0 {
		c.Matcher.MMRLambda = 0.6
	}
	if c.Matcher.CandidatePoolSize == 0 {
		c.Matcher.CandidatePoolSize = 50
	}
}
