package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
)

var ingestAsync bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <简历文件>...",
	Short: "解析简历文件并写入存储",
	Long: `对每个简历文件执行: 文本提取 -> LLM结构化 -> 分块嵌入 -> 写入MySQL和Qdrant。
使用--async时改为上传到MinIO并发布消息，由serve进程异步处理。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestAsync, "async", false, "上传到MinIO并走消息队列异步入库")
}

func runIngest(ctx context.Context, paths []string) error {
	appCtx, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appCtx.close(ctx)

	if ingestAsync {
		return ingestViaQueue(ctx, appCtx, paths)
	}
	return ingestDirect(ctx, appCtx, paths)
}

// ingestDirect 在当前进程内完成整条入库链路
func ingestDirect(ctx context.Context, appCtx *appContext, paths []string) error {
	ingest, err := appCtx.buildIngestProcessor()
	if err != nil {
		return err
	}
	extractor, err := appCtx.buildResumeExtractor()
	if err != nil {
		return err
	}
	pdfExtractor, err := appCtx.buildTextExtractor(ctx)
	if err != nil {
		return err
	}

	failures := 0
	for _, path := range paths {
		if err := ingestOneFile(ctx, ingest, extractor, pdfExtractor, path); err != nil {
			if errors.Is(err, processor.ErrDuplicateResume) {
				fmt.Printf("跳过: %s 与已入库简历原文相同\n", path)
				continue
			}
			logger.Error().Err(err).Str("file", path).Msg("简历入库失败")
			fmt.Fprintf(os.Stderr, "失败: %s: %v\n", path, err)
			failures++
			continue
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d/%d 个文件入库失败", failures, len(paths))
	}
	return nil
}

func ingestOneFile(ctx context.Context, ingest *processor.IngestProcessor, extractor *parser.LLMResumeExtractor, pdfExtractor processor.TextExtractor, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	var text string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = pdfExtractor.ExtractFromBytes(ctx, data, path)
		if err != nil {
			return fmt.Errorf("提取PDF文本失败: %w", err)
		}
	} else {
		text = string(data)
	}

	parsed, err := extractor.ExtractResume(ctx, text)
	if err != nil && (parsed == nil || parsed.Confidence == types.ParseFailed) {
		return fmt.Errorf("结构化提取失败: %w", err)
	}
	if parsed.Confidence == types.ParseRecovered {
		fmt.Printf("注意: %s 的部分字段来自正则兜底: %v\n", path, parsed.RecoveredFields)
	}

	stored, err := ingest.Store(ctx, parsed, processor.StoreMeta{})
	if err != nil {
		return err
	}

	fmt.Printf("已入库: %s -> 简历ID %s (%d个分块, 候选人: %s <%s>)\n",
		path, stored.ResumeID, stored.ChunkCount, parsed.Record.Name, parsed.Record.Email)
	return nil
}

// ingestViaQueue 上传原始文件到MinIO并发布上传事件
func ingestViaQueue(ctx context.Context, appCtx *appContext, paths []string) error {
	if appCtx.store.MinIO == nil {
		return fmt.Errorf("MinIO未配置或初始化失败，无法异步入库")
	}
	if appCtx.store.RabbitMQ == nil {
		return fmt.Errorf("RabbitMQ未配置或初始化失败，无法异步入库")
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("读取文件 %s 失败: %w", path, err)
		}

		uploadID := uuid.Must(uuid.NewV4()).String()
		ext := filepath.Ext(path)
		objectKey, md5Hex, err := appCtx.store.MinIO.UploadResumeBytes(ctx, uploadID, ext, data)
		if err != nil {
			return fmt.Errorf("上传 %s 到MinIO失败: %w", path, err)
		}

		msg := &storage.ResumeUploadedMessage{
			ObjectKey:        objectKey,
			OriginalFilename: filepath.Base(path),
			RawFileMD5:       md5Hex,
			UploadedAt:       time.Now(),
		}
		if err := appCtx.store.RabbitMQ.PublishResumeUploaded(ctx, msg); err != nil {
			return fmt.Errorf("发布上传事件失败: %w", err)
		}
		fmt.Printf("已提交: %s -> %s\n", path, objectKey)
	}
	return nil
}
