package security

import (
	"strings"
	"testing"
)

func TestStripMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "空文字列",
			input: "",
			want:  "",
		},
		{
			name:  "プレーンテキストはそのまま",
			input: "Plain text stays",
			want:  "Plain text stays",
		},
		{
			name:  "インラインタグを除去",
			input: "<strong>Bold</strong> and <em>italic</em>",
			want:  "Bold and italic",
		},
		{
			name:  "実体参照をデコード",
			input: "Tom &amp; Jerry &lt;3",
			want:  "Tom & Jerry <3",
		},
		{
			name:  "段落は空行で区切る",
			input: "<p>First</p><p>Second</p>",
			want:  "First\n\nSecond",
		},
		{
			name:  "リスト項目は改行で区切る",
			input: "<ul><li>one</li><li>two</li></ul>",
			want:  "one\ntwo",
		},
		{
			name:  "連続する空白を1つにまとめる",
			input: "  a   lot \t of   space  ",
			want:  "a lot of space",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.StripMarkup(tt.input); got != tt.want {
				t.Errorf("StripMarkup(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestStripMarkup_XSSPayloads はスクリプトやイベント属性が残らないことを検証する。
func TestStripMarkup_XSSPayloads(t *testing.T) {
	sanitizer := NewTextSanitizer()

	payloads := []string{
		`<script>alert('xss')</script>Safe`,
		`<img src=x onerror=alert(1)>Safe`,
		`<a href="javascript:alert(1)">Safe</a>`,
		`<style>body{display:none}</style>Safe`,
		`<iframe src="https://evil.example.com"></iframe>Safe`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			got := sanitizer.StripMarkup(payload)
			for _, bad := range []string{"<", "alert", "onerror", "javascript", "display:none"} {
				if strings.Contains(got, bad) {
					t.Errorf("StripMarkup(%q) = %q, should not contain %q", payload, got, bad)
				}
			}
			if !strings.Contains(got, "Safe") {
				t.Errorf("StripMarkup(%q) = %q, should keep text", payload, got)
			}
		})
	}
}

// TestStripMarkup_Idempotent は同一入力に対して結果が安定することを検証する。
func TestStripMarkup_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := "<h2>Title</h2><p>Body with <a href=\"https://example.com\">link</a></p>"

	first := sanitizer.StripMarkup(input)
	second := sanitizer.StripMarkup(first)
	if first != second {
		t.Errorf("not idempotent: %q -> %q", first, second)
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
