package feed

import (
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
)

func TestDetectChannel(t *testing.T) {
	tests := []struct {
		name string
		feed *gofeed.Feed
		want string
	}{
		{
			name: "フィード説明のアンカー",
			feed: &gofeed.Feed{Description: `<a href="https://www.youtube.com/channel/UCbbbbbbbbbbbbbbbbbbbbbb">YT</a>`},
			want: "UCbbbbbbbbbbbbbbbbbbbbbb",
		},
		{
			name: "本文テキスト中のURL",
			feed: &gofeed.Feed{Description: "Subscribe at youtube.com/channel/UCcccccccccccccccccccccc today"},
			want: "UCcccccccccccccccccccccc",
		},
		{
			name: "ハンドル形式",
			feed: &gofeed.Feed{Description: `<a href="https://youtube.com/@TheShow/videos">YT</a>`},
			want: "@TheShow",
		},
		{
			name: "フィードのリンク",
			feed: &gofeed.Feed{Link: "https://www.youtube.com/channel/UCdddddddddddddddddddddd"},
			want: "UCdddddddddddddddddddddd",
		},
		{
			name: "エピソード説明はフィード順で最初のもの",
			feed: &gofeed.Feed{Items: []*gofeed.Item{
				{Description: "no link here"},
				{Description: `<a href="https://www.youtube.com/channel/UCeeeeeeeeeeeeeeeeeeeeee">first</a>`},
				{Description: `<a href="https://www.youtube.com/channel/UCffffffffffffffffffffff">second</a>`},
			}},
			want: "UCeeeeeeeeeeeeeeeeeeeeee",
		},
		{
			name: "フィード説明がエピソードより優先",
			feed: &gofeed.Feed{
				Description: "youtube.com/@feedlevel",
				Items:       []*gofeed.Item{{Description: "youtube.com/@itemlevel"}},
			},
			want: "@feedlevel",
		},
		{
			name: "動画URLはチャンネルとみなさない",
			feed: &gofeed.Feed{Description: "https://www.youtube.com/watch?v=abc123"},
			want: "",
		},
		{
			name: "長すぎるハンドルは切り詰めない",
			feed: &gofeed.Feed{Description: "youtube.com/@" + strings.Repeat("a", 40)},
			want: "",
		},
		{
			name: "23文字以上のチャンネルIDは切り詰めない",
			feed: &gofeed.Feed{Description: `<a href="https://www.youtube.com/channel/UCgggggggggggggggggggggggX">YT</a>`},
			want: "",
		},
		{
			name: "クエリ付きのチャンネルURL",
			feed: &gofeed.Feed{Description: "https://www.youtube.com/channel/UChhhhhhhhhhhhhhhhhhhhhh?sub_confirmation=1"},
			want: "UChhhhhhhhhhhhhhhhhhhhhh",
		},
		{
			name: "括弧内のハンドル",
			feed: &gofeed.Feed{Description: "(youtube.com/@paren_show)"},
			want: "@paren_show",
		},
		{
			name: "見つからない",
			feed: &gofeed.Feed{Description: "plain text"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectChannel(tt.feed); got != tt.want {
				t.Errorf("DetectChannel() = %q, want %q", got, tt.want)
			}
		})
	}
}
