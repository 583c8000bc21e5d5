package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/matching"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-match-go/storage/mysql")

// 确保MySQL实现了文档存储契约
var _ matching.DocumentStore = (*MySQL)(nil)

// MySQL 文档存储适配器
type MySQL struct {
	db *gorm.DB
}

// NewMySQL 创建MySQL适配器并自动迁移文档表
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("mysql配置不能为空")
	}

	logLevel := gormlogger.Warn
	switch cfg.LogLevel {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "info":
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接池失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return nil, fmt.Errorf("迁移文档表失败: %w", err)
	}

	return &MySQL{db: db}, nil
}

// DB 暴露底层gorm实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭连接池
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDocument 读取文档并转换为引擎视图。
// 文档不存在返回 DocumentNotFoundError，不做任何重试。
func (m *MySQL) GetDocument(ctx context.Context, docID string) (*matching.Document, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.GetDocument",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("doc.id", docID)))
	defer span.End()

	var record models.Document
	err := m.db.WithContext(ctx).Where("doc_id = ?", docID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Ok, "not found")
		return nil, &matching.DocumentNotFoundError{DocID: docID}
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询文档失败: doc_id=%s: %w", docID, err)
	}

	doc := &matching.Document{
		ID:            record.DocID,
		Type:          types.DocType(record.DocType),
		RawText:       record.RawText,
		Status:        record.Status,
		RequiredYears: record.RequiredYears,
		ChunkCount:    record.ChunkCount,
	}

	if len(record.RequiredSkillsJSON) > 0 {
		skills, err := decodeSkills(record.RequiredSkillsJSON)
		if err != nil {
			// 技能JSON损坏不阻断匹配，按无技能要求处理
			span.AddEvent("skills_json_invalid", trace.WithAttributes(
				attribute.String("doc.id", docID),
			))
		} else {
			doc.Skills = skills
		}
	}

	span.SetStatus(codes.Ok, "")
	return doc, nil
}

// decodeSkills 解析外部抽取器写入的技能JSON。
// 同义词表约定首个元素是技能名本身，缺失时补上。
func decodeSkills(data []byte) ([]types.SkillRecord, error) {
	var raw []models.SkillRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	skills := make([]types.SkillRecord, 0, len(raw))
	for _, r := range raw {
		if r.Name == "" {
			continue
		}
		tier := types.SkillTierGeneral
		if r.Tier == string(types.SkillTierTop) {
			tier = types.SkillTierTop
		}
		synonyms := r.Synonyms
		if len(synonyms) == 0 || synonyms[0] != r.Name {
			synonyms = append([]string{r.Name}, synonyms...)
		}
		skills = append(skills, types.SkillRecord{
			Name:     r.Name,
			Synonyms: synonyms,
			Tier:     tier,
		})
	}
	return skills, nil
}
