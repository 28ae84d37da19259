/*
此文件实现了基于关键词词表的技能提取与命中打分。
岗位描述通过词表子串匹配得到required技能集，候选人文本按同样方式计算命中率。
*/

package parser

import (
	"math"
	"strings"

	"resume-rag-go/internal/config"
)

// SkillMatcher 技能关键词匹配器
// 词表在构造时统一转小写，匹配全部大小写不敏感。
type SkillMatcher struct {
	vocabulary []string
}

// NewSkillMatcher 创建技能匹配器
// vocabulary为空时使用内置默认词表；多词技能（如"machine learning"）按整体子串匹配。
func NewSkillMatcher(vocabulary []string) *SkillMatcher {
	if len(vocabulary) == 0 {
		vocabulary = config.DefaultSkillVocabulary
	}
	normalized := make([]string, 0, len(vocabulary))
	seen := make(map[string]bool, len(vocabulary))
	for _, skill := range vocabulary {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		normalized = append(normalized, s)
	}
	return &SkillMatcher{vocabulary: normalized}
}

// Vocabulary 返回归一化后的词表（词表顺序即匹配结果顺序）
func (m *SkillMatcher) Vocabulary() []string {
	return m.vocabulary
}

// ExtractSkills 从文本中提取词表命中的技能
// 对文本小写后做子串匹配，返回顺序与词表一致；无命中时返回空切片。
func (m *SkillMatcher) ExtractSkills(text string) []string {
	lower := strings.ToLower(text)
	skills := make([]string, 0, 8)
	for _, skill := range m.vocabulary {
		if strings.Contains(lower, skill) {
			skills = append(skills, skill)
		}
	}
	return skills
}

// MatchAgainst 计算候选人文本对required技能集的命中情况
// 返回命中的技能（保持required的顺序）和百分比得分。
// required为空时得分为0，不做除零。
func (m *SkillMatcher) MatchAgainst(candidateText string, required []string) (matched []string, percent float64) {
	matched = make([]string, 0, len(required))
	if len(required) == 0 {
		return matched, 0
	}

	lower := strings.ToLower(candidateText)
	for _, skill := range required {
		if strings.Contains(lower, strings.ToLower(skill)) {
			matched = append(matched, skill)
		}
	}

	return matched, Round2(100 * float64(len(matched)) / float64(len(required)))
}

// Round2 四舍五入保留两位小数
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
