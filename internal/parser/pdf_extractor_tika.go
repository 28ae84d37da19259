package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"resume-rag-go/internal/logger"

	"github.com/rs/zerolog"
)

// TikaPDFExtractor 基于Apache Tika服务的文本提取器
// 作为eino解析器的替代，适合PDF之外还要处理DOC/DOCX的部署。
type TikaPDFExtractor struct {
	serverURL string
	client    *http.Client
	logger    zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaPDFExtractor)

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.client.Timeout = timeout
	}
}

// NewTikaPDFExtractor 创建Tika提取器
// serverURL形如 http://localhost:9998
func NewTikaPDFExtractor(serverURL string, opts ...TikaOption) (*TikaPDFExtractor, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, fmt.Errorf("Tika服务地址不能为空")
	}

	e := &TikaPDFExtractor{
		serverURL: strings.TrimRight(serverURL, "/"),
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger.Logger.With().Str("component", "tika_extractor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractFromFile 从文件提取纯文本
func (e *TikaPDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	return e.ExtractFromBytes(ctx, data, filePath)
}

// ExtractFromBytes 从字节提取纯文本
// 走Tika的PUT /tika接口，Accept: text/plain。
func (e *TikaPDFExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建Tika请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求Tika服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Tika返回状态 %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	text := string(body)
	e.logger.Debug().Str("uri", uri).Int("bytes_in", len(data)).Int("chars_out", len(text)).
		Msg("Tika提取完成")
	return text, nil
}
