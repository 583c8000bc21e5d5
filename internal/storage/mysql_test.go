package storage

import (
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeSkills 外部抽取器写入的技能JSON解析
func TestDecodeSkills(t *testing.T) {
	data := []byte(`[
		{"name": "Go", "synonyms": ["Go", "Golang"], "tier": "top"},
		{"name": "AWS", "synonyms": ["EC2", "S3"], "tier": "general"},
		{"name": "Docker", "tier": "general"},
		{"name": "", "tier": "top"}
	]`)

	skills, err := decodeSkills(data)
	require.NoError(t, err)
	require.Len(t, skills, 3, "空名技能要被丢弃")

	assert.Equal(t, "Go", skills[0].Name)
	assert.Equal(t, types.SkillTierTop, skills[0].Tier)
	assert.Equal(t, []string{"Go", "Golang"}, skills[0].Synonyms)

	// 同义词表首位不是技能名时补上
	assert.Equal(t, []string{"AWS", "EC2", "S3"}, skills[1].Synonyms)

	// 无同义词时至少包含技能名本身
	assert.Equal(t, []string{"Docker"}, skills[2].Synonyms)
}

// TestDecodeSkillsUnknownTier 未知层级按一般技能处理
func TestDecodeSkillsUnknownTier(t *testing.T) {
	skills, err := decodeSkills([]byte(`[{"name": "Go", "tier": "critical"}]`))
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, types.SkillTierGeneral, skills[0].Tier)
}

func TestDecodeSkillsInvalidJSON(t *testing.T) {
	_, err := decodeSkills([]byte(`{not json`))
	assert.Error(t, err)
}
