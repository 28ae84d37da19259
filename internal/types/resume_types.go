package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResumeRecord 结构化简历记录
// 形状固定：缺失的标量为空字符串，缺失的列表为空切片，绝不使用null哨兵值。
// 在入库边界校验一次，之后各组件可以放心使用。
type ResumeRecord struct {
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	Education  []string `json:"education"`
	Skills     []string `json:"skills"`
	Experience []string `json:"experience"`
	Projects   []string `json:"projects"`
}

// Normalize 填平nil列表，保证形状约定成立
func (r *ResumeRecord) Normalize() {
	if r.Education == nil {
		r.Education = []string{}
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.Experience == nil {
		r.Experience = []string{}
	}
	if r.Projects == nil {
		r.Projects = []string{}
	}
}

// Flatten 将记录摊平为单个文本串，供分块和嵌入使用
// 字段按声明顺序拼接：name, phone, email, education, skills, experience, projects。
// 列表字段序列化为规范JSON数组，标量字段直接取值，各部分以空格连接。
func (r *ResumeRecord) Flatten() string {
	parts := []string{r.Name, r.Phone, r.Email}
	for _, list := range [][]string{r.Education, r.Skills, r.Experience, r.Projects} {
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			// []string 序列化不会失败，这里只是兜底
			parts = append(parts, strings.Join(list, " "))
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, " ")
}

// DedupKey 返回用于候选人去重的身份键
// 源数据的email大小写可能不一致，这里统一小写并去除首尾空白。
func (r *ResumeRecord) DedupKey() string {
	return NormalizeEmail(r.Email)
}

// NormalizeEmail 规范化email作为候选人身份键
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RetrievedCandidate 单次最近邻查询返回的候选块
// 是分块内容与其所属简历身份字段的反规范化联接结果。
type RetrievedCandidate struct {
	ResumeID  string // 所属简历ID
	Name      string // 候选人姓名
	Email     string // 候选人邮箱
	Education string // 教育信息（JSON文本）
	Content   string // 命中的分块内容
}

// ScoredCandidate 关键词打分后的候选人条目
type ScoredCandidate struct {
	ResumeID      string   `json:"resume_id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Education     string   `json:"education"`
	MatchedSkills []string `json:"matched_skills"`
	// MatchPercent 取值[0,100]，保留两位小数；required技能集为空时约定为0
	MatchPercent float64 `json:"match_percent"`
}

// ChunkReport 单个描述分块的检索结果报告
// 排名调用对分块级失败做局部吸收，需要完整覆盖保证的调用方通过它检查。
type ChunkReport struct {
	ChunkIndex     int    // 描述分块序号（从0开始）
	CandidateCount int    // 该分块贡献的候选条目数
	Err            error  // 分块级失败原因，成功时为nil
	RequiredSkills []string
}

// Failed 该分块是否检索失败
func (c *ChunkReport) Failed() bool {
	return c.Err != nil
}

// ParseConfidence LLM结构化解析结果的置信级别
type ParseConfidence string

const (
	// ParseStrict 响应整体即为合法JSON
	ParseStrict ParseConfidence = "STRICT"
	// ParseRecovered 从响应中截取的JSON子串解析成功，或正则兜底恢复了
	// 部分字段（后者RecoveredFields非空）
	ParseRecovered ParseConfidence = "RECOVERED"
	// ParseFailed 解析失败，调用方应转入正则兜底
	ParseFailed ParseConfidence = "FAILED"
)

// ParsedResume 带置信标记的结构化解析结果
// 用显式的两段式结果代替静默重试，调用方可以区分置信级别。
type ParsedResume struct {
	Record     ResumeRecord
	Confidence ParseConfidence
	// RecoveredFields 记录哪些字段来自正则兜底而非LLM输出
	RecoveredFields []string
}

// String 便于日志输出
func (p ParsedResume) String() string {
	return fmt.Sprintf("ParsedResume{confidence=%s, recovered=%v, email=%s}",
		p.Confidence, p.RecoveredFields, p.Record.Email)
}
