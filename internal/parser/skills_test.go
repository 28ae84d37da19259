package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillMatcherExtractSkills(t *testing.T) {
	matcher := NewSkillMatcher([]string{"Python", "FastAPI", "PostgreSQL", "machine learning", "AWS"})

	// 大小写不敏感，多词技能按整体子串匹配
	skills := matcher.ExtractSkills("Senior engineer with PYTHON, fastapi and Machine Learning experience")
	assert.Equal(t, []string{"python", "fastapi", "machine learning"}, skills, "结果顺序应与词表一致")

	assert.Empty(t, matcher.ExtractSkills("前端工程师，精通CSS"), "无命中时应返回空切片")
	assert.Empty(t, matcher.ExtractSkills(""))
}

func TestSkillMatcherVocabularyNormalization(t *testing.T) {
	matcher := NewSkillMatcher([]string{" Python ", "python", "", "SQL"})
	assert.Equal(t, []string{"python", "sql"}, matcher.Vocabulary(), "词表应去重、去空白并小写")
}

func TestSkillMatcherDefaultVocabulary(t *testing.T) {
	// 未指定词表时回落到内置默认词表
	matcher := NewSkillMatcher(nil)
	require.NotEmpty(t, matcher.Vocabulary())
	assert.Contains(t, matcher.Vocabulary(), "python")
	assert.Contains(t, matcher.Vocabulary(), "semantic search")

	skills := matcher.ExtractSkills("Python and Docker on AWS")
	assert.Equal(t, []string{"python", "aws", "docker"}, skills)
}

func TestSkillMatcherMatchAgainst(t *testing.T) {
	matcher := NewSkillMatcher(nil)
	required := []string{"python", "fastapi", "postgresql"}

	// 命中2/3
	matched, percent := matcher.MatchAgainst("Backend developer: Python, PostgreSQL, Redis", required)
	assert.Equal(t, []string{"python", "postgresql"}, matched)
	assert.Equal(t, 66.67, percent, "2/3命中应为66.67")

	// 全命中
	matched, percent = matcher.MatchAgainst("python fastapi postgresql", required)
	assert.Len(t, matched, 3)
	assert.Equal(t, 100.0, percent)

	// 零命中
	matched, percent = matcher.MatchAgainst("java spring", required)
	require.NotNil(t, matched)
	assert.Empty(t, matched)
	assert.Equal(t, 0.0, percent)
}

func TestSkillMatcherMatchAgainstEmptyRequired(t *testing.T) {
	matcher := NewSkillMatcher(nil)

	// required为空时得分为0且不报错
	matched, percent := matcher.MatchAgainst("python everything", nil)
	assert.Empty(t, matched)
	assert.Equal(t, 0.0, percent)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, Round2(100.0*2/3))
	assert.Equal(t, 33.33, Round2(100.0*1/3))
	assert.Equal(t, 50.0, Round2(50.0))
	assert.Equal(t, 0.0, Round2(0))
}
