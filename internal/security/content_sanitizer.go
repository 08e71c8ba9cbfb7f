package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はフィード由来のHTMLを保存前に無害化する。
type ContentSanitizer interface {
	// Sanitize はエピソードのショーノート用に許可リスト外のタグと属性を除去する。
	Sanitize(rawHTML string) string

	// StripTags はすべてのタグを除去したプレーンテキストを返す。
	StripTags(rawHTML string) string
}

var httpsOnly = regexp.MustCompile(`(?i)^https://`)

type contentSanitizer struct {
	notes *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewContentSanitizer はショーノート用のポリシーを構築する。
//   - 段落、改行、リスト、見出し(h2-h4)、強調、引用を許可
//   - aのhrefはhttp/https/mailtoのみ。target="_blank"とrel="noopener noreferrer"を付与
//   - imgのsrcはhttpsのみ
func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"h2", "h3", "h4",
		"blockquote", "strong", "em", "b", "i",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsOnly).OnElements("img")

	return &contentSanitizer{
		notes: p,
		plain: bluemonday.StrictPolicy(),
	}
}

func (s *contentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return strings.TrimSpace(s.notes.Sanitize(rawHTML))
}

func (s *contentSanitizer) StripTags(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	// StrictPolicyは実体参照をエスケープしたまま返すため、テキストとして戻す
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(rawHTML)))
}
