package textutil

import "strings"

// Placeholder markers written by steps that could not produce real content.
const (
	ASRPendingText  = "[ASR pending] Please replace with real transcript."
	ZHPendingText   = "[ZH pending] 请在 translate 阶段补全中文字幕。"
	PendingMarker   = "[pending]"
	UntranslatedTag = "【待翻译】"
)

var pendingTextMarkers = []string{
	"[asr pending]",
	"[zh pending]",
	"[pending]",
	"[待补充]",
	"【待翻译】",
}

// IsPendingText reports whether text is blank or still carries a placeholder marker.
func IsPendingText(text string) bool {
	value := strings.ToLower(strings.TrimSpace(text))
	if value == "" {
		return true
	}
	for _, marker := range pendingTextMarkers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}

// IsPendingIPA reports whether an IPA transcription is blank or a placeholder.
func IsPendingIPA(value string) bool {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" {
		return true
	}
	return strings.Contains(text, "[pending]") || strings.Contains(text, "[ipa pending]")
}
