package severity

import (
	"fmt"
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Level 用户消息的粗粒度分诊等级
type Level string

const (
	Low       Level = "low"
	Medium    Level = "medium"
	High      Level = "high"
	Emergency Level = "emergency"
)

// Levels 按严重程度从低到高列出所有等级
var Levels = []Level{Low, Medium, High, Emergency}

// ParseLevel 将存储的标签解析为 Level
func ParseLevel(raw string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case Low:
		return Low, true
	case Medium:
		return Medium, true
	case High:
		return High, true
	case Emergency:
		return Emergency, true
	default:
		return "", false
	}
}

var highKeywords = []string{
	"severe pain", "high fever", "difficulty swallowing", "persistent vomiting",
	"severe headache", "vision problems", "numbness", "weakness",
}

var mediumKeywords = []string{
	"pain", "fever", "nausea", "headache", "dizziness", "rash", "cough",
}

// crisisKeywords 触发紧急横幅。词表与上面的分级有重叠：
// "chest pain" 按分级是 medium，按本词表是危机
var crisisKeywords = []string{
	"chest pain", "heart attack", "can't breathe", "cannot breathe", "unconscious",
	"suicide", "overdose", "stroke", "seizure", "choking",
}

var (
	highMatcher   = mustMatcher(highKeywords)
	mediumMatcher = mustMatcher(mediumKeywords)
	crisisMatcher = mustMatcher(crisisKeywords)
)

// matcher 基于小写关键词构建的 Aho-Corasick 自动机
type matcher struct {
	machine *goahocorasick.Machine
}

func mustMatcher(keywords []string) matcher {
	patterns := make([][]rune, 0, len(keywords))
	for _, word := range keywords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		patterns = append(patterns, []rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		panic(fmt.Sprintf("severity: build keyword automaton: %v", err))
	}
	return matcher{machine: m}
}

// find 按首次出现顺序返回 normalized 中包含的去重关键词
func (m matcher) find(normalized []rune) []string {
	if len(normalized) == 0 {
		return nil
	}

	terms := m.machine.MultiPatternSearch(normalized, false)
	if len(terms) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(terms))
	words := make([]string, 0, len(terms))
	for _, term := range terms {
		word := string(term.Word)
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}

func (m matcher) contains(normalized []rune) bool {
	if len(normalized) == 0 {
		return false
	}
	return len(m.machine.MultiPatternSearch(normalized, true)) > 0
}

func normalize(text string) []rune {
	return []rune(strings.ToLower(text))
}

// Classify 计算问题的严重等级。显式紧急标记直接返回 emergency，
// 否则先匹配 high 再匹配 medium，因此 "severe headache" 为 high
func Classify(question string, explicitEmergency bool) Level {
	if explicitEmergency {
		return Emergency
	}

	normalized := normalize(question)
	switch {
	case highMatcher.contains(normalized):
		return High
	case mediumMatcher.contains(normalized):
		return Medium
	default:
		return Low
	}
}

// DetectsCrisis 判断文本是否需要显示紧急横幅，与严重等级无关
func DetectsCrisis(text string) bool {
	return crisisMatcher.contains(normalize(text))
}
