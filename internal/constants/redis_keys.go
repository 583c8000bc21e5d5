package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"

	// EntitySkillVector 技能向量实体
	EntitySkillVector = "skill_vector"

	// KeyJobSkillVectors 某岗位的技能向量缓存 (HASH, field=技能名)
	// 格式: app:match:skill_vector:{jobID}
	KeyJobSkillVectors = AppPrefix + ":" + MatchModulePrefix + ":" + EntitySkillVector + ":%s"
)
