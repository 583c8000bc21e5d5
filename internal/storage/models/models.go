package models

import (
	"time"

	"gorm.io/datatypes"
)

// 文档处理状态
const (
	// StatusPendingParsing 等待解析
	StatusPendingParsing = "PENDING_PARSING"
	// StatusPendingIndexing 解析完成，等待向量化入索引
	StatusPendingIndexing = "PENDING_INDEXING"
	// StatusIndexed 已完成索引，可参与匹配
	StatusIndexed = "INDEXED"
	// StatusFailed 处理失败
	StatusFailed = "FAILED"
)

// Document 文档主表。简历和岗位描述共用一张表，按doc_type区分。
// RequiredSkillsJSON 和 RequiredYears 只对岗位描述有意义，
// 由外部抽取器写入，这里只读。
type Document struct {
	DocID              string         `gorm:"type:char(36);primaryKey"`
	DocType            string         `gorm:"type:varchar(32);not null;index:idx_documents_doc_type"`
	RawText            string         `gorm:"type:mediumtext"`
	Status             string         `gorm:"type:varchar(50);default:'PENDING_PARSING';index:idx_documents_status"`
	ChunkCount         int            `gorm:"default:0"`
	RequiredSkillsJSON datatypes.JSON `gorm:"type:json"`
	RequiredYears      *int           `gorm:""`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}

// SkillRecordJSON RequiredSkillsJSON里单个技能的结构
type SkillRecordJSON struct {
	Name     string   `json:"name"`
	Synonyms []string `json:"synonyms"`
	Tier     string   `json:"tier"`
}
