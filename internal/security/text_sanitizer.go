package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部由来の文字列からマークアップを除去し、プレーンテキストにする。
// AI要約の出力やインポートしたフィード記事の本文に使用する。
type TextSanitizer interface {
	// StripMarkup はすべてのHTMLタグを除去し、実体参照をデコードしたテキストを返す。
	// 段落や改行などのブロック境界は改行として残し、連続する空行は1つにまとめる。
	StripMarkup(raw string) string
}

// blockBreaks はブロック要素の終端を改行に置き換える。
var blockBreaks = strings.NewReplacer(
	"</p>", "</p>\n\n",
	"<br>", "<br>\n",
	"<br/>", "<br/>\n",
	"<br />", "<br />\n",
	"</li>", "</li>\n",
	"</div>", "</div>\n",
	"</blockquote>", "</blockquote>\n\n",
	"</pre>", "</pre>\n\n",
	"</h1>", "</h1>\n\n",
	"</h2>", "</h2>\n\n",
	"</h3>", "</h3>\n\n",
	"</h4>", "</h4>\n\n",
	"</h5>", "</h5>\n\n",
	"</h6>", "</h6>\n\n",
)

// textSanitizer はTextSanitizerの実装。bluemondayのポリシーはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// StripMarkup はマークアップを除去したプレーンテキストを返す。
func (s *textSanitizer) StripMarkup(raw string) string {
	if raw == "" {
		return ""
	}

	stripped := html.UnescapeString(s.policy.Sanitize(blockBreaks.Replace(raw)))

	lines := strings.Split(stripped, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
