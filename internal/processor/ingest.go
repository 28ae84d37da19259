package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IngestProcessor 负责结构化简历的入库写入
// 写入跨MySQL和Qdrant两个存储，MySQL侧走事务，Qdrant侧失败时回滚事务，
// 事务提交失败时对已写入的向量点做补偿删除。
type IngestProcessor struct {
	db       *storage.MySQL
	vectorDB storage.VectorDatabase
	embedder parser.TextEmbedder
	chunker  *parser.WordChunker
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// IngestOption IngestProcessor的配置选项
type IngestOption func(*IngestProcessor)

// WithIngestChunkSize 覆盖入库分块大小（词数）
func WithIngestChunkSize(size int) IngestOption {
	return func(p *IngestProcessor) {
		p.chunker = parser.NewWordChunker(size)
	}
}

// NewIngestProcessor 创建入库处理器
func NewIngestProcessor(db *storage.MySQL, vectorDB storage.VectorDatabase, embedder parser.TextEmbedder, opts ...IngestOption) *IngestProcessor {
	p := &IngestProcessor{
		db:       db,
		vectorDB: vectorDB,
		embedder: embedder,
		chunker:  parser.NewWordChunker(parser.DefaultIngestChunkSize),
		logger:   logger.Logger.With().Str("component", "ingest_processor").Logger(),
		tracer:   otel.Tracer("resume-rag-go/processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StoredResume 一次入库的结果
type StoredResume struct {
	ResumeID   string
	ChunkCount int
	PointIDs   []string
}

// StoreMeta 入库的来源元信息，随简历主记录落库
type StoreMeta struct {
	SourceObjectKey string // MinIO对象键，直接入库时为空
	RawFileMD5      string // 原始文件MD5
}

// Store 将结构化简历写入MySQL和Qdrant
// 流程: 校验记录 -> 摊平分块 -> 批量嵌入 -> 原文MD5查重 ->
// 事务内写主记录和分块行 -> 写向量点 -> 提交。
// 向量写入失败回滚事务；提交失败对向量点做补偿删除。
func (p *IngestProcessor) Store(ctx context.Context, parsed *types.ParsedResume, meta StoreMeta) (*StoredResume, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.store")
	defer span.End()

	if parsed == nil {
		return nil, newIngestError("", "validate", ErrInvalidRecord, "解析结果为空")
	}

	record := parsed.Record
	record.Normalize()
	if isEmptyRecord(record) {
		return nil, newIngestError("", "validate", ErrInvalidRecord, "记录所有字段为空")
	}

	fullText := record.Flatten()
	if strings.TrimSpace(fullText) == "" {
		return nil, newIngestError("", "validate", ErrInvalidRecord, "记录摊平后为空文本")
	}

	// UUIDv7带时间前缀，resume_id按入库时间天然有序
	resumeID := uuid.Must(uuid.NewV7()).String()
	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.String("resume.email", tracing.MaskPII(record.Email)),
		attribute.String("parse.confidence", string(parsed.Confidence)),
	)

	chunks := p.chunker.Chunk(fullText)
	if len(chunks) == 0 {
		return nil, newIngestError(resumeID, "chunk", ErrInvalidRecord, "分块结果为空")
	}
	span.SetAttributes(attribute.Int("chunk.count", len(chunks)))

	embeddings, err := p.embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, newIngestError(resumeID, "embed", err, "")
	}
	if len(embeddings) != len(chunks) {
		return nil, newIngestError(resumeID, "embed", ErrStorageFailure,
			fmt.Sprintf("嵌入数量不匹配: 期望%d实际%d", len(chunks), len(embeddings)))
	}

	resumeRow, err := buildResumeRow(resumeID, parsed, fullText, meta)
	if err != nil {
		return nil, newIngestError(resumeID, "marshal", err, "")
	}
	chunkRows := buildChunkRows(resumeID, chunks)

	// 原文MD5查重，同一份简历文本不重复入库
	if existing, err := p.db.FindResumeByRawTextMD5(ctx, resumeRow.RawTextMD5); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, newIngestError(resumeID, "dedupe", ErrStorageFailure, err.Error())
	} else if existing != nil {
		return nil, newIngestError(existing.ResumeID, "dedupe", ErrDuplicateResume, "相同原文已入库")
	}

	// MySQL事务包住主记录、分块行和向量写入
	tx := p.db.DB().WithContext(ctx).Begin()
	if tx.Error != nil {
		tracing.RecordError(span, tx.Error, tracing.ErrorTypeDB)
		return nil, newIngestError(resumeID, "begin_tx", ErrStorageFailure, tx.Error.Error())
	}

	if err := p.db.SaveResume(tx, resumeRow); err != nil {
		tx.Rollback()
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, newIngestError(resumeID, "save_resume", ErrStorageFailure, err.Error())
	}
	if err := p.db.SaveResumeChunks(tx, chunkRows); err != nil {
		tx.Rollback()
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, newIngestError(resumeID, "save_chunks", ErrStorageFailure, err.Error())
	}

	pointIDs, err := p.vectorDB.StoreResumeChunkVectors(ctx, resumeID, record, chunks, embeddings)
	if err != nil {
		tx.Rollback()
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, newIngestError(resumeID, "store_vectors", ErrStorageFailure, err.Error())
	}

	if err := tx.Commit().Error; err != nil {
		// 向量点已写入Qdrant，补偿删除避免孤儿点
		if delErr := p.vectorDB.DeletePointsByResumeID(ctx, resumeID); delErr != nil {
			p.logger.Error().Err(delErr).Str("resume_id", resumeID).
				Msg("事务提交失败后补偿删除向量点也失败，存在孤儿向量点")
		}
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, newIngestError(resumeID, "commit", ErrStorageFailure, err.Error())
	}

	p.logger.Info().
		Str("resume_id", resumeID).
		Int("chunks", len(chunks)).
		Str("confidence", string(parsed.Confidence)).
		Msg("简历入库完成")

	return &StoredResume{
		ResumeID:   resumeID,
		ChunkCount: len(chunks),
		PointIDs:   pointIDs,
	}, nil
}

// Delete 删除一份简历的全部数据（MySQL行和Qdrant向量点）
func (p *IngestProcessor) Delete(ctx context.Context, resumeID string) error {
	ctx, span := p.tracer.Start(ctx, "ingest.delete")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", resumeID))

	if err := p.vectorDB.DeletePointsByResumeID(ctx, resumeID); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return newIngestError(resumeID, "delete_vectors", ErrStorageFailure, err.Error())
	}
	if err := p.db.DeleteResume(ctx, resumeID); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return newIngestError(resumeID, "delete_rows", ErrStorageFailure, err.Error())
	}
	return nil
}

// buildResumeRow 将解析结果转换为MySQL主记录行
func buildResumeRow(resumeID string, parsed *types.ParsedResume, fullText string, meta StoreMeta) (*models.Resume, error) {
	record := parsed.Record

	educationJSON, err := json.Marshal(record.Education)
	if err != nil {
		return nil, fmt.Errorf("序列化education失败: %w", err)
	}
	skillsJSON, err := json.Marshal(record.Skills)
	if err != nil {
		return nil, fmt.Errorf("序列化skills失败: %w", err)
	}
	experienceJSON, err := json.Marshal(record.Experience)
	if err != nil {
		return nil, fmt.Errorf("序列化experience失败: %w", err)
	}
	projectsJSON, err := json.Marshal(record.Projects)
	if err != nil {
		return nil, fmt.Errorf("序列化projects失败: %w", err)
	}
	recoveredJSON, err := json.Marshal(parsed.RecoveredFields)
	if err != nil {
		return nil, fmt.Errorf("序列化recovered_fields失败: %w", err)
	}

	return &models.Resume{
		ResumeID:        resumeID,
		Name:            record.Name,
		Phone:           record.Phone,
		Email:           types.NormalizeEmail(record.Email),
		EducationJSON:   educationJSON,
		SkillsJSON:      skillsJSON,
		ExperienceJSON:  experienceJSON,
		ProjectsJSON:    projectsJSON,
		RawTextMD5:      textMD5(fullText),
		ParseConfidence: string(parsed.Confidence),
		RecoveredJSON:   recoveredJSON,
		SourceObjectKey: meta.SourceObjectKey,
	}, nil
}

// isEmptyRecord 所有标量为空且所有列表为空
// 空记录摊平后仍有空JSON数组字面量，不能只靠摊平文本判空。
func isEmptyRecord(r types.ResumeRecord) bool {
	return r.Name == "" && r.Phone == "" && r.Email == "" &&
		len(r.Education) == 0 && len(r.Skills) == 0 &&
		len(r.Experience) == 0 && len(r.Projects) == 0
}

// textMD5 简历摊平文本的MD5，用于入库后的内容级去重查询
func textMD5(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// buildChunkRows 构造分块行，PointID与Qdrant的确定性点ID一致
func buildChunkRows(resumeID string, chunks []string) []models.ResumeChunk {
	rows := make([]models.ResumeChunk, 0, len(chunks))
	for i, content := range chunks {
		rows = append(rows, models.ResumeChunk{
			ResumeID:   resumeID,
			ChunkIndex: i,
			Content:    content,
			PointID:    storage.ResumeChunkPointID(resumeID, i),
		})
	}
	return rows
}
