package feed

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/castsite/internal/model"
)

// rule はフィードの1項目から値を1つ取り出す抽出規則。
// 空文字列は「この規則では決まらない」を意味し、次の規則に進む。
type rule struct {
	name    string
	extract func(feed *gofeed.Feed, item *gofeed.Item) string
}

// firstOf は規則を順に評価し、最初に得られた空でない値を返す。
func firstOf(rules []rule, feed *gofeed.Feed, item *gofeed.Item) string {
	for _, r := range rules {
		if v := strings.TrimSpace(r.extract(feed, item)); v != "" {
			return v
		}
	}
	return ""
}

var guidRules = []rule{
	{"item_guid", func(_ *gofeed.Feed, it *gofeed.Item) string { return it.GUID }},
	{"item_link", func(_ *gofeed.Feed, it *gofeed.Item) string { return it.Link }},
}

var descriptionRules = []rule{
	{"content_encoded", func(_ *gofeed.Feed, it *gofeed.Item) string { return it.Content }},
	{"description", func(_ *gofeed.Feed, it *gofeed.Item) string { return it.Description }},
	{"itunes_summary", func(_ *gofeed.Feed, it *gofeed.Item) string {
		if it.ITunesExt == nil {
			return ""
		}
		return it.ITunesExt.Summary
	}},
	{"itunes_subtitle", func(_ *gofeed.Feed, it *gofeed.Item) string {
		if it.ITunesExt == nil {
			return ""
		}
		return it.ITunesExt.Subtitle
	}},
}

var itemImageRules = []rule{
	{"item_itunes_image", func(_ *gofeed.Feed, it *gofeed.Item) string {
		if it.ITunesExt == nil {
			return ""
		}
		return it.ITunesExt.Image
	}},
	{"item_image", func(_ *gofeed.Feed, it *gofeed.Item) string {
		if it.Image == nil {
			return ""
		}
		return it.Image.URL
	}},
}

var feedImageRules = []rule{
	{"feed_itunes_image", func(f *gofeed.Feed, _ *gofeed.Item) string {
		if f.ITunesExt == nil {
			return ""
		}
		return f.ITunesExt.Image
	}},
	{"feed_image", func(f *gofeed.Feed, _ *gofeed.Item) string {
		if f.Image == nil {
			return ""
		}
		return f.Image.URL
	}},
}

// imageRules はエピソード画像の規則。エピソード固有の画像がなければフィードの画像を使う。
var imageRules = append(append([]rule{}, itemImageRules...), feedImageRules...)

var feedDescriptionRules = []rule{
	{"feed_description", func(f *gofeed.Feed, _ *gofeed.Item) string { return f.Description }},
	{"feed_itunes_summary", func(f *gofeed.Feed, _ *gofeed.Item) string {
		if f.ITunesExt == nil {
			return ""
		}
		return f.ITunesExt.Summary
	}},
	{"feed_itunes_subtitle", func(f *gofeed.Feed, _ *gofeed.Item) string {
		if f.ITunesExt == nil {
			return ""
		}
		return f.ITunesExt.Subtitle
	}},
}

// Normalize はgofeedのパース結果を正規化する。
// エピソードはフィード内の順序を保つ。guidもlinkも持たないアイテムは破棄してSkippedに数える。
func Normalize(raw *gofeed.Feed) *model.ParsedFeed {
	parsed := &model.ParsedFeed{
		Title:       strings.TrimSpace(raw.Title),
		Description: firstOf(feedDescriptionRules, raw, nil),
		Link:        strings.TrimSpace(raw.Link),
		ImageURL:    firstOf(feedImageRules, raw, nil),
		Episodes:    make([]model.ParsedEpisode, 0, len(raw.Items)),
	}

	for _, item := range raw.Items {
		if item == nil {
			parsed.Skipped++
			continue
		}

		guid := firstOf(guidRules, raw, item)
		if guid == "" {
			parsed.Skipped++
			continue
		}

		parsed.Episodes = append(parsed.Episodes, model.ParsedEpisode{
			GUID:            guid,
			Title:           strings.TrimSpace(item.Title),
			Description:     firstOf(descriptionRules, raw, item),
			AudioURL:        audioURL(item),
			ImageURL:        firstOf(imageRules, raw, item),
			PublishedAt:     publishedAt(item),
			DurationSeconds: durationSeconds(item),
		})
	}

	parsed.YouTubeChannelID = DetectChannel(raw)

	return parsed
}

// publishedAt は公開日時、なければ更新日時を返す。どちらも解釈できなければnil。
func publishedAt(item *gofeed.Item) *time.Time {
	var t *time.Time
	switch {
	case item.PublishedParsed != nil:
		t = item.PublishedParsed
	case item.UpdatedParsed != nil:
		t = item.UpdatedParsed
	default:
		return nil
	}
	utc := t.UTC()
	return &utc
}

// audioURL は音声または動画のエンクロージャーを優先し、なければ先頭のエンクロージャーを返す。
func audioURL(item *gofeed.Item) string {
	var first string
	for _, enc := range item.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		if first == "" {
			first = strings.TrimSpace(enc.URL)
		}
		mt := strings.ToLower(enc.Type)
		if strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") {
			return strings.TrimSpace(enc.URL)
		}
	}
	return first
}

func durationSeconds(item *gofeed.Item) int {
	if item.ITunesExt == nil {
		return 0
	}
	return ParseDuration(item.ITunesExt.Duration)
}

// ParseDuration はitunes:durationの値を秒数に変換する。
// "3600"、"MM:SS"、"HH:MM:SS" を受け付け、解釈できない場合は0を返す。
// 秒数がint32に収まらない値も解釈できないものとして扱う。
func ParseDuration(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, p := range parts {
		// 小数秒は切り捨てる
		p, _, _ = strings.Cut(p, ".")
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
		if total > math.MaxInt32 {
			return 0
		}
	}
	return total
}
