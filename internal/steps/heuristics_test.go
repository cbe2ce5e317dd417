package steps

import (
	"strings"
	"testing"
)

func TestInferGrammar(t *testing.T) {
	tests := []struct {
		en         string
		pattern    string
		points     int
		difficulty string
	}{
		{"Where is the station?", "疑问句结构", 1, "A1"},
		{"What a day!", "感叹句结构", 1, "A1"},
		{"I have finished.", "完成时表达", 1, "A1"},
		{"She went home because it was very late.", "一般过去时", 3, "A1"},
		{"We will travel tomorrow.", "将来表达", 1, "A1"},
		{"The cat sleeps on the warm mat in the small quiet kitchen every day.", "陈述句结构", 1, "A2"},
	}
	for _, tc := range tests {
		got := inferGrammar(tc.en)
		if got.Pattern != tc.pattern || len(got.Points) != tc.points || got.Difficulty != tc.difficulty {
			t.Fatalf("inferGrammar(%q) = %+v", tc.en, got)
		}
	}
}

func TestInferUsageMatchesWholeWords(t *testing.T) {
	tests := []struct {
		en    string
		zh    string
		scene string
	}{
		{"Hi, nice to meet you.", "你好", "greeting"},
		{"This is my book.", "", "daily_conversation"},
		{"We walk to town.", "", "daily_life_narration"},
		{"Are you ready?", "", "questioning"},
	}
	for _, tc := range tests {
		got := inferUsage(tc.en, tc.zh)
		if got.Scene != tc.scene {
			t.Fatalf("inferUsage(%q).Scene = %q, want %q", tc.en, got.Scene, tc.scene)
		}
		if tc.zh != "" && (len(got.Alternatives) != 1 || got.Alternatives[0] != tc.zh) {
			t.Fatalf("alternatives = %v", got.Alternatives)
		}
		if tc.zh == "" && got.Alternatives == nil {
			t.Fatalf("alternatives should be an empty list")
		}
	}
}

func TestSummarize(t *testing.T) {
	summary, highlights := summarize([]Sentence{
		{EN: "I went home.", ZH: "我回家了。"},
		{EN: "Did you see it?", ZH: "你看到了吗？"},
	})
	if !strings.Contains(summary, "我回家了。；你看到了吗？") {
		t.Fatalf("summary = %q", summary)
	}
	if len(highlights) != 2 || highlights[0] != "一般过去时叙事表达" || highlights[1] != "疑问/感叹语气表达" {
		t.Fatalf("highlights = %v", highlights)
	}

	summary, highlights = summarize(nil)
	if !strings.Contains(summary, defaultSummaryPreview) || highlights[0] != defaultSummaryHighlight {
		t.Fatalf("empty summary = %q %v", summary, highlights)
	}
}
