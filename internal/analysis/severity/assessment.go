package severity

// Assessment 单次请求的严重程度判定结果
type Assessment struct {
	Level Level
	// Crisis 命中危机词表时为 true，与紧急标记无关
	Crisis bool
	// Flagged 客户端声明紧急情况时为 true
	Flagged bool
	// Matched 决定等级的关键词，会写入日志并随对话记录持久化
	Matched []string
}

// IsEmergency 是否按紧急情况处理
func (a Assessment) IsEmergency() bool {
	return a.Level == Emergency
}

// Assess 按 显式标记 -> 危机关键词 -> 严重程度关键词 的顺序判定。
// 即使设置了标记也会检测危机词，保证横幅和记录一致
func Assess(question string, explicitEmergency bool) Assessment {
	normalized := normalize(question)
	crisisWords := crisisMatcher.find(normalized)

	a := Assessment{
		Crisis:  len(crisisWords) > 0,
		Flagged: explicitEmergency,
	}

	switch {
	case explicitEmergency:
		a.Level = Emergency
		a.Matched = crisisWords
	case a.Crisis:
		a.Level = Emergency
		a.Matched = crisisWords
	default:
		if words := highMatcher.find(normalized); len(words) > 0 {
			a.Level = High
			a.Matched = words
		} else if words := mediumMatcher.find(normalized); len(words) > 0 {
			a.Level = Medium
			a.Matched = words
		} else {
			a.Level = Low
		}
	}

	return a
}
