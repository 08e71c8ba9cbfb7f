// Package model はドメインモデルを定義する。
package model

import "time"

// Podcast はRSSフィードから作成されたポッドキャストを表す。
// 初回インポート時に作成され、以降のフィード同期でタイトル・説明・画像が更新される。
type Podcast struct {
	ID               string
	OwnerID          string
	RSSURL           string
	YouTubeChannelID string // 未設定の場合は空文字列
	Title            string
	Description      string
	ImageURL         string
	MirroredImageURL string // オブジェクトストレージに複製したカバー画像のURL
	Theme            []byte // 外観設定（JSON）。同期処理では扱わない
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ParsedFeed はフィードを取得・正規化した結果を表す。
// エピソードはフィード内の順序（通常は新しい順）を保持する。
type ParsedFeed struct {
	Title            string
	Description      string
	Link             string
	ImageURL         string
	YouTubeChannelID string // 説明文から検出したチャンネル。検出できなければ空
	Episodes         []ParsedEpisode
	Skipped          int // guidもlinkも無いため破棄したアイテム数
}
