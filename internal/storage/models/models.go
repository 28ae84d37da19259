package models

import (
	"time"

	"gorm.io/datatypes"
)

// Resume 简历主表
// 结构化字段以JSON列存储，email带索引用于查询侧按候选人去重排查。
type Resume struct {
	ResumeID        string         `gorm:"type:char(36);primaryKey"`
	Name            string         `gorm:"type:varchar(255)"`
	Phone           string         `gorm:"type:varchar(50)"`
	Email           string         `gorm:"type:varchar(255);index:idx_resumes_email"`
	EducationJSON   datatypes.JSON `gorm:"type:json"`
	SkillsJSON      datatypes.JSON `gorm:"type:json"`
	ExperienceJSON  datatypes.JSON `gorm:"type:json"`
	ProjectsJSON    datatypes.JSON `gorm:"type:json"`
	RawTextMD5      string         `gorm:"type:char(32);index:idx_resumes_raw_text_md5"`
	ParseConfidence string         `gorm:"type:varchar(20)"` // strict / recovered / failed
	RecoveredJSON   datatypes.JSON `gorm:"type:json"`        // 兜底恢复的字段名列表
	SourceObjectKey string         `gorm:"type:varchar(1024)"` // MinIO中原始文件的对象键
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// ResumeChunk 简历分块文本表
// (resume_id, chunk_index) 唯一，PointID对应Qdrant中的向量点。
type ResumeChunk struct {
	ChunkDBID  uint64    `gorm:"primaryKey;autoIncrement"`
	ResumeID   string    `gorm:"type:char(36);not null;index:idx_rc_resume_id;uniqueIndex:idx_rc_resume_chunk,priority:1"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_rc_resume_chunk,priority:2"`
	Content    string    `gorm:"type:text;not null"`
	PointID    string    `gorm:"type:char(36);not null;index:idx_rc_point_id"`
	CreatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ResumeChunk) TableName() string {
	return "resume_chunks"
}
