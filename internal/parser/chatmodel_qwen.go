package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

const (
	// DashScope的OpenAI兼容endpoint
	defaultQwenAPIURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName = "qwen-plus"
)

// QwenChatModel 通过DashScope的OpenAI兼容API访问通义千问
// 实现 model.ToolCallingChatModel，可直接挂入eino编排。
// 结构化提取不需要工具调用，WithTools只做透传。
type QwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewQwenChatModel 创建通义千问聊天模型客户端
func NewQwenChatModel(cfg *config.LLMExtractorConfig) (*QwenChatModel, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM配置不能为空")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("LLM API密钥不能为空")
	}

	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultQwenModelName
	}
	apiURL := cfg.BaseURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultQwenAPIURL
	}

	return &QwenChatModel{
		apiKey:      cfg.APIKey,
		modelName:   modelName,
		apiURL:      apiURL,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger.Logger.With().Str("component", "qwen_chat_model").Logger(),
	}, nil
}

// OpenAI兼容的请求/响应结构

type qwenChatRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
}

type qwenChatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type qwenChatChoice struct {
	Index        int             `json:"index"`
	Message      qwenChatMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type qwenChatResponse struct {
	ID      string           `json:"id"`
	Model   string           `json:"model"`
	Choices []qwenChatChoice `json:"choices"`
}

// Generate 实现 model.ChatModel 接口
func (q *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	reqPayload := qwenChatRequest{
		Model:       q.modelName,
		Messages:    messages,
		Temperature: q.temperature,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+q.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	q.logger.Debug().Str("model", q.modelName).Int("messages", len(messages)).Msg("发送聊天补全请求")

	httpResp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp qwenChatResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API返回空choices")
	}

	apiMsg := resp.Choices[0].Message
	content := ""
	if apiMsg.Content != nil {
		content = *apiMsg.Content
	}

	role := schema.RoleType(apiMsg.Role)
	if role == "" {
		role = schema.Assistant
	}
	return &schema.Message{Role: role, Content: content}, nil
}

// Stream 实现 model.ChatModel 接口
// 结构化提取走一次性Generate，流式未实现。
func (q *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel的Stream方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口
// 提取流程不使用工具调用，原样返回自身。
func (q *QwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		q.logger.Warn().Int("tools", len(tools)).Msg("QwenChatModel不支持工具调用，忽略绑定")
	}
	return q, nil
}

var _ model.ToolCallingChatModel = (*QwenChatModel)(nil)
