package parser

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/types"
)

// 测试用LLM模型模拟器
type mockChatModel struct {
	// 模拟响应
	mockResponse string
	// 用于测试的错误
	err error
}

// Generate 实现model.ChatModel接口
func (m *mockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{
		Role:    "assistant",
		Content: m.mockResponse,
	}, nil
}

// Stream 实现model.ChatModel接口
func (m *mockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	// 测试中不需要流式响应
	return nil, nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *mockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

const sampleResumeText = `张三
后端工程师
邮箱: zhangsan@example.com
电话: 138-1234-5678
技能: Python, FastAPI, PostgreSQL, Docker
工作经历: 某公司后端开发三年`

func TestExtractResumeStrictParse(t *testing.T) {
	// 响应整体就是JSON对象，置信度为STRICT
	mockLLM := &mockChatModel{
		mockResponse: `{
  "name": "张三",
  "phone": "138-1234-5678",
  "email": "zhangsan@example.com",
  "education": ["某大学 计算机科学 本科"],
  "skills": ["python", "fastapi", "postgresql", "docker"],
  "experience": ["某公司后端开发三年"],
  "projects": []
}`,
	}

	extractor := NewLLMResumeExtractor(mockLLM)
	parsed, err := extractor.ExtractResume(context.Background(), sampleResumeText)
	require.NoError(t, err)
	require.NotNil(t, parsed)

	assert.Equal(t, types.ParseStrict, parsed.Confidence)
	assert.Empty(t, parsed.RecoveredFields)
	assert.Equal(t, "张三", parsed.Record.Name)
	assert.Equal(t, "zhangsan@example.com", parsed.Record.Email)
	assert.Equal(t, []string{"python", "fastapi", "postgresql", "docker"}, parsed.Record.Skills)
	assert.NotNil(t, parsed.Record.Projects, "Normalize后空列表不应为nil")
}

func TestExtractResumeStructuredListEntries(t *testing.T) {
	// LLM偶尔把education条目输出为对象，应保留为紧凑JSON字符串而不是解析失败
	mockLLM := &mockChatModel{
		mockResponse: `{
  "name": "李四",
  "phone": "",
  "email": "lisi@example.com",
  "education": [{"school": "某大学", "degree": "硕士"}, "某高中"],
  "skills": ["java"],
  "experience": [],
  "projects": []
}`,
	}

	extractor := NewLLMResumeExtractor(mockLLM)
	parsed, err := extractor.ExtractResume(context.Background(), sampleResumeText)
	require.NoError(t, err)

	assert.Equal(t, types.ParseStrict, parsed.Confidence)
	require.Len(t, parsed.Record.Education, 2)
	assert.JSONEq(t, `{"school": "某大学", "degree": "硕士"}`, parsed.Record.Education[0])
	assert.Equal(t, "某高中", parsed.Record.Education[1])
}

func TestExtractResumeRecoveredFromSubstring(t *testing.T) {
	// JSON外包了解释文字，子串解析成功但置信度降为RECOVERED
	mockLLM := &mockChatModel{
		mockResponse: `好的，以下是提取结果 {"name": "张三", "email": "zhangsan@example.com", "skills": ["python"]} 希望有帮助`,
	}

	extractor := NewLLMResumeExtractor(mockLLM)
	parsed, err := extractor.ExtractResume(context.Background(), sampleResumeText)
	require.NoError(t, err)

	assert.Equal(t, types.ParseRecovered, parsed.Confidence)
	assert.Empty(t, parsed.RecoveredFields, "子串解析不经过正则兜底")
	assert.Equal(t, "张三", parsed.Record.Name)
	assert.Equal(t, "zhangsan@example.com", parsed.Record.Email)
	assert.Equal(t, []string{"python"}, parsed.Record.Skills)
}

func TestExtractResumeRecoveredFromCodeFence(t *testing.T) {
	// markdown代码块同样视为子串解析
	mockLLM := &mockChatModel{
		mockResponse: "```json\n" + `{"name": "李四", "email": "lisi@example.com"}` + "\n```",
	}

	extractor := NewLLMResumeExtractor(mockLLM)
	parsed, err := extractor.ExtractResume(context.Background(), sampleResumeText)
	require.NoError(t, err)

	assert.Equal(t, types.ParseRecovered, parsed.Confidence)
	assert.Equal(t, "lisi@example.com", parsed.Record.Email)
}

func TestExtractResumeRecoveredFromRaw(t *testing.T) {
	// LLM返回的不是JSON，第二阶段应从原文恢复email/phone/name/skills
	mockLLM := &mockChatModel{
		mockResponse: "抱歉，我无法解析这份简历。",
	}

	extractor := NewLLMResumeExtractor(mockLLM,
		WithSkillMatcher(NewSkillMatcher([]string{"python", "fastapi", "postgresql"})))
	parsed, err := extractor.ExtractResume(context.Background(), sampleResumeText)
	require.NoError(t, err)
	require.NotNil(t, parsed)

	assert.Equal(t, types.ParseRecovered, parsed.Confidence)
	assert.Contains(t, parsed.RecoveredFields, "email")
	assert.Contains(t, parsed.RecoveredFields, "phone")
	assert.Contains(t, parsed.RecoveredFields, "name")
	assert.Contains(t, parsed.RecoveredFields, "skills")

	assert.Equal(t, "zhangsan@example.com", parsed.Record.Email)
	assert.Equal(t, "张三", parsed.Record.Name)
	assert.Equal(t, []string{"python", "fastapi", "postgresql"}, parsed.Record.Skills)
}

func TestExtractResumeFailed(t *testing.T) {
	// LLM输出无法解析且原文没有任何可恢复字段
	mockLLM := &mockChatModel{
		mockResponse: "无有效输出",
	}

	extractor := NewLLMResumeExtractor(mockLLM)
	parsed, err := extractor.ExtractResume(context.Background(), "乱码页 0x7F3A 无有效内容")
	require.Error(t, err)
	require.NotNil(t, parsed, "失败时仍返回带置信度的结果")
	assert.Equal(t, types.ParseFailed, parsed.Confidence)
}

func TestExtractResumeEmptyInput(t *testing.T) {
	extractor := NewLLMResumeExtractor(&mockChatModel{})
	_, err := extractor.ExtractResume(context.Background(), "   ")
	assert.Error(t, err)
}

func TestExtractJSONObject(t *testing.T) {
	// markdown代码块
	assert.Equal(t, `{"a": 1}`, ExtractJSONObject("结果如下：\n```json\n{\"a\": 1}\n```"))

	// 裸JSON带前后缀
	assert.Equal(t, `{"a": {"b": 2}}`, ExtractJSONObject(`输出 {"a": {"b": 2}} 完毕`))

	// 无JSON
	assert.Equal(t, "", ExtractJSONObject("没有任何大括号"))

	// 不配对的大括号
	assert.Equal(t, "", ExtractJSONObject(`{"a": 1`))
}

func TestGuessNameFromText(t *testing.T) {
	assert.Equal(t, "王小明", guessNameFromText("\n王小明\n软件工程师\n"))
	assert.Equal(t, "", guessNameFromText("电话: 13812345678\n王小明"), "首行含数字时不猜姓名")
	assert.Equal(t, "", guessNameFromText(""))
}
