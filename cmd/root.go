package cmd

import (
	"context"
	"fmt"
	"time"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/tracing"

	"github.com/spf13/cobra"
)

const app = "resume-rag"

// 命令行标志
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   app,
	Short: "resume-rag 是简历入库和岗位匹配检索的命令行工具",
	Long: `resume-rag 将简历解析为结构化记录并写入MySQL和Qdrant，
之后可以对岗位描述执行语义检索和关键词打分，输出按匹配度排序的候选人列表。`,
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认在当前目录和./config下查找config.yaml)")
}

// appContext 一次命令执行所需的全部依赖
type appContext struct {
	cfg      *config.Config
	store    *storage.Storage
	embedder parser.TextEmbedder
	matcher  *parser.SkillMatcher

	shutdownTracer func(context.Context) error
}

// setup 加载配置并初始化日志、追踪和存储
func setup(ctx context.Context) (*appContext, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	appCtx := &appContext{cfg: cfg}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracerProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化链路追踪失败，继续运行")
		} else {
			appCtx.shutdownTracer = shutdown
		}
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}
	appCtx.store = store

	embedder, err := buildEmbedder(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	appCtx.embedder = embedder
	appCtx.matcher = parser.NewSkillMatcher(cfg.Engine.SkillVocabulary)
	return appCtx, nil
}

// buildEmbedder 构建嵌入客户端，Redis可用时叠加向量缓存
func buildEmbedder(cfg *config.Config, store *storage.Storage) (parser.TextEmbedder, error) {
	var embedder parser.TextEmbedder
	embedder, err := parser.NewAliyunEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("创建嵌入客户端失败: %w", err)
	}
	if store.Redis != nil {
		ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
		embedder = parser.NewCachedEmbedder(embedder, store.Redis, cfg.Embedding.Model, ttl)
	}
	return embedder, nil
}

// buildRanker 构建查询侧的检索打分排名器
func (a *appContext) buildRanker() (*processor.Ranker, error) {
	if a.store.Qdrant == nil {
		return nil, fmt.Errorf("Qdrant未配置或初始化失败，无法执行检索")
	}
	retriever := processor.NewVectorRetriever(a.store.Qdrant, a.embedder)
	return processor.NewRanker(retriever, a.matcher,
		processor.WithQueryChunkSize(a.cfg.Engine.QueryChunkSize),
		processor.WithTopKPerChunk(a.cfg.Engine.TopKPerChunk),
		processor.WithChunkTimeout(time.Duration(a.cfg.Engine.ChunkTimeoutSeconds)*time.Second),
	), nil
}

// buildIngestProcessor 构建入库侧的写入处理器
func (a *appContext) buildIngestProcessor() (*processor.IngestProcessor, error) {
	if a.store.MySQL == nil {
		return nil, fmt.Errorf("MySQL未配置或初始化失败，无法入库")
	}
	if a.store.Qdrant == nil {
		return nil, fmt.Errorf("Qdrant未配置或初始化失败，无法入库")
	}
	return processor.NewIngestProcessor(a.store.MySQL, a.store.Qdrant, a.embedder,
		processor.WithIngestChunkSize(a.cfg.Engine.IngestChunkSize),
	), nil
}

// buildTextExtractor 按配置构建文档文本提取器
func (a *appContext) buildTextExtractor(ctx context.Context) (processor.TextExtractor, error) {
	if a.cfg.Engine.PDFExtractor == "tika" {
		extractor, err := parser.NewTikaPDFExtractor(a.cfg.Engine.TikaServerURL)
		if err != nil {
			return nil, fmt.Errorf("创建Tika提取器失败: %w", err)
		}
		return extractor, nil
	}
	extractor, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建PDF提取器失败: %w", err)
	}
	return extractor, nil
}

// buildResumeExtractor 构建LLM结构化提取器
func (a *appContext) buildResumeExtractor() (*parser.LLMResumeExtractor, error) {
	chatModel, err := parser.NewQwenChatModel(&a.cfg.LLMExtractor)
	if err != nil {
		return nil, fmt.Errorf("创建LLM客户端失败: %w", err)
	}

	opts := []parser.ExtractorOption{parser.WithSkillMatcher(a.matcher)}
	if d, err := time.ParseDuration(a.cfg.LLMExtractor.ExtractionTimeout); err == nil && d > 0 {
		opts = append(opts, parser.WithExtractionTimeout(d))
	}
	return parser.NewLLMResumeExtractor(chatModel, opts...), nil
}

// close 释放存储连接和追踪器
func (a *appContext) close(ctx context.Context) {
	if a.store != nil {
		a.store.Close()
	}
	if a.shutdownTracer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.shutdownTracer(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭链路追踪器失败")
		}
	}
}
