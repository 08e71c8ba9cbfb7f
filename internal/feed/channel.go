package feed

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// channelPattern はYouTubeチャンネルの正規URLに一致する。
// /channel/UC... のIDと /@handle の両方を対象とする。
// ID・ハンドルの直後はURLの区切りか空白、引用符、タグ、文字列末尾でなければならない。
var channelPattern = regexp.MustCompile(
	`(?i)(?:https?://)?(?:www\.|m\.)?youtube\.com/(?:channel/(UC[A-Za-z0-9_-]{22})|@([A-Za-z0-9._-]{3,30}))(?:[/?#"'\s<),]|$)`,
)

// DetectChannel はフィードの説明・リンク、続いて各エピソードの説明から
// YouTubeチャンネルを探す。最初に見つかったものを返し、なければ空文字列。
// ハンドル形式の場合は "@handle" を返す。
func DetectChannel(raw *gofeed.Feed) string {
	sources := []string{raw.Description}
	if raw.ITunesExt != nil {
		sources = append(sources, raw.ITunesExt.Summary)
	}
	sources = append(sources, raw.Link)

	for _, src := range sources {
		if id := channelInMarkup(src); id != "" {
			return id
		}
	}

	for _, item := range raw.Items {
		if item == nil {
			continue
		}
		for _, src := range []string{item.Content, item.Description} {
			if id := channelInMarkup(src); id != "" {
				return id
			}
		}
	}

	return ""
}

// channelInMarkup はアンカーのhrefを優先して検索し、見つからなければ本文テキストを検索する。
func channelInMarkup(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	for _, href := range anchorHrefs(markup) {
		if id := matchChannel(href); id != "" {
			return id
		}
	}

	return matchChannel(markup)
}

// anchorHrefs はHTML中のaタグのhref属性を出現順に返す。
func anchorHrefs(markup string) []string {
	var hrefs []string
	z := html.NewTokenizer(strings.NewReader(markup))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return hrefs

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if strings.EqualFold(string(key), "href") {
					hrefs = append(hrefs, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}

func matchChannel(s string) string {
	m := channelPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return "@" + m[2]
}
