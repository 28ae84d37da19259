package processor

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRawMD5TTL 原始文件MD5去重标记的保留时间
const DefaultRawMD5TTL = 30 * 24 * time.Hour

// TextExtractor 原始文件字节到纯文本
type TextExtractor interface {
	ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, error)
}

// ResumeExtractor 纯文本到结构化简历记录
type ResumeExtractor interface {
	ExtractResume(ctx context.Context, text string) (*types.ParsedResume, error)
}

// IngestPipeline 消费简历上传事件并驱动完整入库流程
// 流程: 消息 -> MinIO下载 -> MD5去重 -> 文本提取 -> LLM结构化 -> 入库。
// 单条消息的失败不影响后续消息：瞬时失败nack重新入队，坏消息ack丢弃。
type IngestPipeline struct {
	store     *storage.Storage
	pdf       TextExtractor
	extractor ResumeExtractor
	ingest    *IngestProcessor
	mqCfg     *config.RabbitMQConfig
	md5TTL    time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// PipelineOption IngestPipeline的配置选项
type PipelineOption func(*IngestPipeline)

// WithRawMD5TTL 覆盖MD5去重标记的保留时间
func WithRawMD5TTL(ttl time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if ttl > 0 {
			p.md5TTL = ttl
		}
	}
}

// NewIngestPipeline 创建入库流水线
func NewIngestPipeline(store *storage.Storage, pdf TextExtractor, extractor ResumeExtractor, ingest *IngestProcessor, mqCfg *config.RabbitMQConfig, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		store:     store,
		pdf:       pdf,
		extractor: extractor,
		ingest:    ingest,
		mqCfg:     mqCfg,
		md5TTL:    DefaultRawMD5TTL,
		logger:    logger.Logger.With().Str("component", "ingest_pipeline").Logger(),
		tracer:    otel.Tracer("resume-rag-go/processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start 声明拓扑并启动消费者
// 返回的通道关闭后消费者停止。
func (p *IngestPipeline) Start(ctx context.Context) (chan<- struct{}, error) {
	if err := p.store.RabbitMQ.SetupResumeTopology(); err != nil {
		return nil, err
	}

	prefetch := p.mqCfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}

	return p.store.RabbitMQ.StartConsumer(p.mqCfg.IngestQueue, prefetch, func(body []byte) bool {
		return p.handleMessage(ctx, body)
	})
}

// handleMessage 处理单条上传事件，返回true则ack
func (p *IngestPipeline) handleMessage(ctx context.Context, body []byte) bool {
	ctx, span := p.tracer.Start(ctx, "pipeline.handle_message")
	defer span.End()

	var msg storage.ResumeUploadedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 坏消息重入队只会无限循环，直接丢弃
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		p.logger.Error().Err(err).Msg("消息反序列化失败，丢弃")
		return true
	}
	if msg.ObjectKey == "" {
		p.logger.Error().Msg("消息缺少object_key，丢弃")
		return true
	}
	span.SetAttributes(attribute.String("messaging.object_key", msg.ObjectKey))

	log := p.logger.With().Str("object_key", msg.ObjectKey).Logger()

	// MD5去重：同一文件的重复消息直接跳过
	dedupeMarked := false
	if msg.RawFileMD5 != "" && p.store.Redis != nil {
		duplicate, err := p.store.Redis.CheckAndAddRawFileMD5(ctx, msg.RawFileMD5, p.md5TTL)
		if err != nil {
			log.Warn().Err(err).Msg("MD5去重检查失败，继续处理")
		} else if duplicate {
			log.Info().Str("md5", msg.RawFileMD5).Msg("重复的简历文件，跳过")
			return true
		} else {
			dedupeMarked = true
		}
	}

	resumeID, err := p.processUpload(ctx, &msg)
	if err != nil {
		// 处理失败时撤销去重标记，重试时不会被误判为重复
		if dedupeMarked {
			if rmErr := p.store.Redis.RemoveRawFileMD5(ctx, msg.RawFileMD5); rmErr != nil {
				log.Warn().Err(rmErr).Msg("撤销MD5去重标记失败")
			}
		}
		if isPermanentFailure(err) {
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeValidation,
				attribute.String("messaging.decision", "drop"))
			log.Error().Err(err).Msg("简历处理永久失败，丢弃消息")
			return true
		}
		tracing.RecordRabbitMQNack(span, msg.ObjectKey, err.Error())
		log.Error().Err(err).Msg("简历处理失败，重新入队")
		return false
	}

	log.Info().Str("resume_id", resumeID).Msg("简历入库流程完成")
	return true
}

// processUpload 执行下载、提取、结构化和入库
func (p *IngestPipeline) processUpload(ctx context.Context, msg *storage.ResumeUploadedMessage) (string, error) {
	data, err := p.store.MinIO.DownloadResumeFile(ctx, msg.ObjectKey)
	if err != nil {
		return "", err
	}

	text, err := p.extractText(ctx, msg, data)
	if err != nil {
		return "", err
	}

	parsed, err := p.extractor.ExtractResume(ctx, text)
	if err != nil && (parsed == nil || parsed.Confidence == types.ParseFailed) {
		// 结构化彻底失败，重试也不会变好
		return "", newIngestError("", "extract", ErrInvalidRecord, err.Error())
	}

	stored, err := p.ingest.Store(ctx, parsed, StoreMeta{
		SourceObjectKey: msg.ObjectKey,
		RawFileMD5:      msg.RawFileMD5,
	})
	if err != nil {
		return "", err
	}
	return stored.ResumeID, nil
}

// extractText 按文件扩展名选择提取方式
func (p *IngestPipeline) extractText(ctx context.Context, msg *storage.ResumeUploadedMessage, data []byte) (string, error) {
	name := msg.OriginalFilename
	if name == "" {
		name = msg.ObjectKey
	}
	ext := strings.ToLower(filepath.Ext(name))

	if ext == ".pdf" {
		return p.pdf.ExtractFromBytes(ctx, data, msg.ObjectKey)
	}
	// 其他格式按纯文本处理
	return string(data), nil
}

// isPermanentFailure 判断失败是否不可重试
// 无效记录、结构化失败和重复入库属于内容问题，重新入队没有意义。
func isPermanentFailure(err error) bool {
	return errors.Is(err, ErrInvalidRecord) || errors.Is(err, ErrDuplicateResume)
}
