package textutil_test

import (
	"testing"

	"coursepipe/internal/textutil"
)

func TestIsPendingText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{textutil.ASRPendingText, true},
		{textutil.ZHPendingText, true},
		{"【待翻译】Hello", true},
		{"内容[待补充]", true},
		{"Hello there.", false},
		{"你好。", false},
	}
	for _, tt := range tests {
		if got := textutil.IsPendingText(tt.in); got != tt.want {
			t.Fatalf("IsPendingText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsPendingIPA(t *testing.T) {
	if !textutil.IsPendingIPA("") || !textutil.IsPendingIPA("[IPA pending]") || !textutil.IsPendingIPA(textutil.PendingMarker) {
		t.Fatal("expected placeholders to be pending")
	}
	if textutil.IsPendingIPA("/həˈloʊ/") {
		t.Fatal("expected real IPA to be ready")
	}
}
