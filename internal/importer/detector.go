package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	FeedTypeRSS  FeedType = "rss"
	FeedTypeAtom FeedType = "atom"
)

// FeedCandidate はHTMLのlink要素から検出されたフィード候補。
type FeedCandidate struct {
	URL      string
	FeedType FeedType
	Title    string
}

// sniffSize はボディ判定で検査する先頭バイト数。
const sniffSize = 4096

// mediaTypeOf はContent-Typeからパラメータを除いたメディアタイプを小文字で返す。
func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// IsDirectFeed はレスポンスがRSS/Atomフィードそのものかどうかを判定する。
// text/xml や application/xml の場合はボディ先頭のルート要素で判定する。
func IsDirectFeed(contentType string, body []byte) bool {
	switch mediaTypeOf(contentType) {
	case "application/rss+xml", "application/atom+xml", "application/rdf+xml":
		return true
	case "text/xml", "application/xml", "":
		return looksLikeFeed(body)
	default:
		return false
	}
}

// IsHTML はContent-TypeがHTMLかどうかを返す。
func IsHTML(contentType string) bool {
	return strings.Contains(mediaTypeOf(contentType), "html")
}

func looksLikeFeed(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if len(body) > sniffSize {
		body = body[:sniffSize]
	}
	prefix := strings.ToLower(string(body))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseFeedLinks はHTMLのhead内の <link rel="alternate"> からフィード候補を抽出する。
// 相対URLはbaseURLを基準に解決する。
func ParseFeedLinks(htmlBody []byte, baseURL string) []FeedCandidate {
	var candidates []FeedCandidate

	base, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return candidates

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return candidates
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return candidates
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = strings.TrimSpace(string(val))
				case "title":
					title = string(val)
				}
			}
			if !hasToken(rel, "alternate") || href == "" {
				continue
			}

			var feedType FeedType
			switch linkType {
			case "application/rss+xml":
				feedType = FeedTypeRSS
			case "application/atom+xml":
				feedType = FeedTypeAtom
			default:
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			candidates = append(candidates, FeedCandidate{
				URL:      base.ResolveReference(ref).String(),
				FeedType: feedType,
				Title:    title,
			})
		}
	}
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}

// SelectBestFeed は候補から1つを選ぶ。
// 優先順位: 入力と同一ホスト > Atom > 先に出現したもの
func SelectBestFeed(candidates []FeedCandidate, inputURL string) *FeedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := hostOf(inputURL)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == inputHost {
			score += 100
		}
		if c.FeedType == FeedTypeAtom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &candidates[best]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
