/*
此文件实现了基于LLM的简历结构化字段提取。
提取分两个阶段：先尝试严格解析LLM输出的JSON，失败后用正则从原文兜底恢复关键字段，
解析置信度随结果一起返回，调用方可以据此决定是否需要人工复核。
*/

package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/types"
)

const resumeExtractionSystemPrompt = `你是一个简历解析助手。从用户提供的简历文本中提取结构化信息，只输出JSON，不要输出任何解释文字。
JSON格式如下：
{
  "name": "候选人姓名",
  "phone": "联系电话",
  "email": "电子邮箱",
  "education": ["教育经历条目"],
  "skills": ["技能关键词"],
  "experience": ["工作经历条目"],
  "projects": ["项目经历条目"]
}
找不到的字段用空字符串或空数组填充，不要编造内容。`

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

// LLMResumeExtractor 使用LLM从简历原文提取结构化字段
type LLMResumeExtractor struct {
	llmModel model.ToolCallingChatModel
	matcher  *SkillMatcher
	timeout  time.Duration
	logger   zerolog.Logger
}

// ExtractorOption 提取器配置选项
type ExtractorOption func(*LLMResumeExtractor)

// WithExtractionTimeout 设置单次LLM调用超时
func WithExtractionTimeout(d time.Duration) ExtractorOption {
	return func(e *LLMResumeExtractor) {
		e.timeout = d
	}
}

// WithSkillMatcher 设置兜底技能提取使用的匹配器
func WithSkillMatcher(m *SkillMatcher) ExtractorOption {
	return func(e *LLMResumeExtractor) {
		e.matcher = m
	}
}

// NewLLMResumeExtractor 创建简历结构化提取器
func NewLLMResumeExtractor(llmModel model.ToolCallingChatModel, options ...ExtractorOption) *LLMResumeExtractor {
	extractor := &LLMResumeExtractor{
		llmModel: llmModel,
		matcher:  NewSkillMatcher(nil),
		timeout:  60 * time.Second,
		logger:   logger.Logger.With().Str("component", "llm_resume_extractor").Logger(),
	}
	for _, opt := range options {
		opt(extractor)
	}
	return extractor
}

// ExtractResume 从简历原文提取结构化记录
// LLM输出整体即为合法JSON时置信度为ParseStrict；需要从代码块或前后缀文本中截取
// JSON子串、或解析失败但正则能从原文恢复部分字段时为ParseRecovered（后者会记录
// RecoveredFields）；两个阶段都失败返回ParseFailed和错误。
func (e *LLMResumeExtractor) ExtractResume(ctx context.Context, text string) (*types.ParsedResume, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("简历文本为空")
	}

	response, err := e.callLLM(ctx, resumeExtractionSystemPrompt, text)
	if err != nil {
		// LLM完全不可达时直接走兜底恢复
		e.logger.Warn().Err(err).Msg("LLM调用失败，尝试正则兜底提取")
		return e.recoverFromRaw(text, err)
	}

	record, confidence, parseErr := e.parseResponse(response)
	if parseErr == nil {
		record.Normalize()
		if confidence != types.ParseStrict {
			e.logger.Debug().Msg("LLM响应混有非JSON内容，已从子串解析")
		}
		return &types.ParsedResume{
			Record:     *record,
			Confidence: confidence,
		}, nil
	}

	e.logger.Warn().Err(parseErr).Msg("严格解析LLM输出失败，尝试正则兜底提取")
	return e.recoverFromRaw(text, parseErr)
}

// callLLM 调用LLM处理提示词，带退避重试
func (e *LLMResumeExtractor) callLLM(ctx context.Context, systemContent, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	maxRetries := 2
	retryDelay := 2 * time.Second

	var response *einoschema.Message
	var err error

	for retry := 0; retry <= maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				e.logger.Debug().Int("retry", retry).Msg("重试LLM调用")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		response, err = e.llmModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}
		if !isRetryableLLMError(err) || retry >= maxRetries {
			return "", fmt.Errorf("LLM Generate failed: %w", err)
		}
	}

	return response.Content, nil
}

// isRetryableLLMError 判断错误是否应该重试
func isRetryableLLMError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

// llmResumePayload LLM输出的中间结构
// 列表字段用RawMessage接收，兼容LLM偶尔返回对象条目的情况。
type llmResumePayload struct {
	Name       string            `json:"name"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email"`
	Education  []json.RawMessage `json:"education"`
	Skills     []json.RawMessage `json:"skills"`
	Experience []json.RawMessage `json:"experience"`
	Projects   []json.RawMessage `json:"projects"`
}

// parseResponse 解析LLM响应为简历记录
// 响应整体即为一个JSON对象时置信度为ParseStrict；需要从代码块或前后缀
// 说明文字中截取JSON子串时降级为ParseRecovered。
func (e *LLMResumeExtractor) parseResponse(response string) (*types.ResumeRecord, types.ParseConfidence, error) {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "{") {
		var payload llmResumePayload
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			return payloadToRecord(&payload), types.ParseStrict, nil
		}
	}

	jsonStr := ExtractJSONObject(trimmed)
	if jsonStr == "" {
		return nil, types.ParseFailed, fmt.Errorf("无法从LLM响应中提取有效的JSON")
	}

	var payload llmResumePayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, types.ParseFailed, fmt.Errorf("解析JSON失败: %w", err)
	}
	return payloadToRecord(&payload), types.ParseRecovered, nil
}

// payloadToRecord 将LLM中间结构转换为简历记录
func payloadToRecord(payload *llmResumePayload) *types.ResumeRecord {
	return &types.ResumeRecord{
		Name:       strings.TrimSpace(payload.Name),
		Phone:      strings.TrimSpace(payload.Phone),
		Email:      strings.TrimSpace(payload.Email),
		Education:  rawListToStrings(payload.Education),
		Skills:     rawListToStrings(payload.Skills),
		Experience: rawListToStrings(payload.Experience),
		Projects:   rawListToStrings(payload.Projects),
	}
}

// rawListToStrings 将RawMessage列表转换为字符串列表
// 字符串条目直接解码，对象条目保留为紧凑JSON字符串。
func rawListToStrings(items []json.RawMessage) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				result = append(result, trimmed)
			}
			continue
		}
		compact := strings.TrimSpace(string(item))
		if compact != "" && compact != "null" {
			result = append(result, compact)
		}
	}
	return result
}

// recoverFromRaw 第二阶段：用正则从简历原文恢复关键字段
func (e *LLMResumeExtractor) recoverFromRaw(text string, cause error) (*types.ParsedResume, error) {
	record := types.ResumeRecord{}
	var recovered []string

	if email := emailPattern.FindString(text); email != "" {
		record.Email = email
		recovered = append(recovered, "email")
	}
	if phone := phonePattern.FindString(text); phone != "" {
		record.Phone = strings.TrimSpace(phone)
		recovered = append(recovered, "phone")
	}
	if name := guessNameFromText(text); name != "" {
		record.Name = name
		recovered = append(recovered, "name")
	}
	if skills := e.matcher.ExtractSkills(text); len(skills) > 0 {
		record.Skills = skills
		recovered = append(recovered, "skills")
	}

	record.Normalize()

	if len(recovered) == 0 {
		return &types.ParsedResume{
			Record:     record,
			Confidence: types.ParseFailed,
		}, fmt.Errorf("结构化提取失败且无法兜底恢复: %w", cause)
	}

	e.logger.Info().Strs("recovered_fields", recovered).Msg("正则兜底恢复部分字段")
	return &types.ParsedResume{
		Record:          record,
		Confidence:      types.ParseRecovered,
		RecoveredFields: recovered,
	}, nil
}

// guessNameFromText 从简历首部猜测姓名
// 取第一行短且不含数字和@的文本，猜不到返回空串。
func guessNameFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len([]rune(line)) > 40 || strings.ContainsAny(line, "@0123456789") {
			return ""
		}
		if len(strings.Fields(line)) > 5 {
			return ""
		}
		return line
	}
	return ""
}

// ExtractJSONObject 从文本中提取第一个完整的JSON对象
// 优先匹配 ```json 代码块，回退到花括号配对扫描。
func ExtractJSONObject(text string) string {
	re := regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	matches := re.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
