package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/processor"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动简历入库消费者",
	Long: `消费RabbitMQ中的简历上传事件，对每条消息执行下载、文本提取、
LLM结构化和入库。收到SIGINT/SIGTERM后优雅停止。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	appCtx, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appCtx.close(ctx)

	if appCtx.store.RabbitMQ == nil {
		return fmt.Errorf("RabbitMQ未配置或初始化失败，无法启动消费者")
	}
	if appCtx.store.MinIO == nil {
		return fmt.Errorf("MinIO未配置或初始化失败，无法启动消费者")
	}

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

	pipeline := processor.NewIngestPipeline(appCtx.store, pdfExtractor, extractor, ingest, &appCtx.cfg.RabbitMQ)
	stopCh, err := pipeline.Start(ctx)
	if err != nil {
		return fmt.Errorf("启动消费者失败: %w", err)
	}

	logger.Info().Str("queue", appCtx.cfg.RabbitMQ.IngestQueue).Msg("入库消费者已启动，等待消息")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("收到退出信号，停止消费者")
	close(stopCh)
	return nil
}
