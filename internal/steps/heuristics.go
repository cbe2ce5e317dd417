package steps

import (
	"strings"
	"unicode"
)

const (
	difficultyBasic      = "A1"
	difficultyElementary = "A2"

	defaultSummaryPreview   = "本课涵盖基础日常表达。"
	defaultSummaryHighlight = "基础陈述句与高频词汇表达"
)

// words lowercases text and splits it on anything that is not a letter or
// apostrophe.
func words(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func hasAny(set map[string]struct{}, candidates ...string) bool {
	for _, c := range candidates {
		if _, ok := set[c]; ok {
			return true
		}
	}
	return false
}

func inferGrammar(en string) Grammar {
	text := strings.TrimSpace(en)
	tokens := words(text)
	var (
		pattern string
		points  []string
	)
	switch {
	case strings.Contains(text, "?"):
		pattern = "疑问句结构"
		points = append(points, "使用直接提问句式。")
	case strings.Contains(text, "!"):
		pattern = "感叹句结构"
		points = append(points, "表达强调或强烈情绪。")
	case hasAny(tokens, "have", "has", "had"):
		pattern = "完成时表达"
		points = append(points, "用完成时连接过去与现在。")
	case hasAny(tokens, "was", "were", "did", "went", "got"):
		pattern = "一般过去时"
		points = append(points, "描述已经完成的过去事件。")
	case hasAny(tokens, "will") || strings.Contains(strings.ToLower(text), "going to "):
		pattern = "将来表达"
		points = append(points, "描述将来的计划或预测。")
	default:
		pattern = "陈述句结构"
		points = append(points, "使用常见主谓结构表达信息。")
	}
	if hasAny(tokens, "because", "when", "if", "that", "which") {
		points = append(points, "包含从句连接词，补充细节信息。")
	}
	if hasAny(tokens, "very", "really", "quite", "so") {
		points = append(points, "包含程度副词用于加强语气。")
	}
	if len(points) > 3 {
		points = points[:3]
	}

	difficulty := difficultyBasic
	if len(strings.Fields(text)) > 10 {
		difficulty = difficultyElementary
	}
	return Grammar{Pattern: pattern, Points: points, Difficulty: difficulty}
}

func inferUsage(en, zh string) Usage {
	tokens := words(en)
	usage := Usage{Formality: "informal", Alternatives: []string{}}
	switch {
	case hasAny(tokens, "hello", "welcome", "hi"):
		usage.Scene, usage.Tone = "greeting", "friendly"
	case hasAny(tokens, "train", "station", "walk", "woods", "town"):
		usage.Scene, usage.Tone = "daily_life_narration", "neutral"
	case strings.Contains(en, "?"):
		usage.Scene, usage.Tone = "questioning", "curious"
	default:
		usage.Scene, usage.Tone = "daily_conversation", "neutral"
	}
	if zh = strings.TrimSpace(zh); zh != "" {
		usage.Alternatives = []string{zh}
	}
	return usage
}

// summarize builds a lesson summary and up to three grammar highlights.
func summarize(sentences []Sentence) (string, []string) {
	var zhTexts, enTexts []string
	for _, s := range sentences {
		if zh := strings.TrimSpace(s.ZH); zh != "" {
			zhTexts = append(zhTexts, zh)
		}
		if en := strings.TrimSpace(s.EN); en != "" {
			enTexts = append(enTexts, en)
		}
	}

	var preview string
	switch {
	case len(zhTexts) > 0:
		preview = strings.Join(zhTexts[:min(3, len(zhTexts))], "；")
	case len(enTexts) > 0:
		preview = strings.Join(enTexts[:min(2, len(enTexts))], "；")
	default:
		preview = defaultSummaryPreview
	}
	summary := "本课重点围绕日常表达与叙事句型，核心内容包括：" + preview + "。"

	allEN := strings.Join(enTexts, " ")
	tokens := words(allEN)
	var highlights []string
	if hasAny(tokens, "was", "were", "did", "went", "got") {
		highlights = append(highlights, "一般过去时叙事表达")
	}
	if hasAny(tokens, "because", "which", "that", "when", "if") {
		highlights = append(highlights, "从句连接词与句子扩展")
	}
	if strings.ContainsAny(allEN, "?!") {
		highlights = append(highlights, "疑问/感叹语气表达")
	}
	if len(highlights) == 0 {
		highlights = append(highlights, defaultSummaryHighlight)
	}
	return summary, highlights
}
