package security

import (
	"testing"
)

func TestTextSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "NETFLIX", "NETFLIX"},
		{"アンパサンドは保持される", "AT&T TV", "AT&T TV"},
		{"空文字列", "", ""},
		{"装飾タグは除去される", "<b>NETFLIX</b>", "NETFLIX"},
		{"scriptは中身ごと除去される", `<script>alert("x")</script>Ana`, "Ana"},
		{"イベント属性付きのimgは除去される", `<img src=x onerror="alert(1)">Ana`, "Ana"},
		{"エスケープで隠したタグも除去される", "&lt;b&gt;Ana&lt;/b&gt;", "Ana"},
		{"非ASCII文字はそのまま", "María José", "María José"},
		{"タグのみの入力は空になる", "<i></i>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{"AT&T", "<p>Ana</p>", "a < b", "Tom &amp; Jerry"}
	for _, in := range inputs {
		once := sanitizer.Sanitize(in)
		twice := sanitizer.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize is not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
