package model

import "time"

// Episode はポッドキャストに属するエピソードを表す。
// (PodcastID, GUID) の組はユニーク。
type Episode struct {
	ID              string
	PodcastID       string
	GUID            string
	Title           string
	Description     string // サニタイズ済みHTML
	AudioURL        string
	ImageURL        string
	PublishedAt     *time.Time
	DurationSeconds int
	Slug            string
	YouTubeVideoID  string // マッチング処理のみが設定する
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParsedEpisode はフィードから正規化された未保存のエピソードを表す。
type ParsedEpisode struct {
	GUID            string
	Title           string
	Description     string // 未サニタイズ
	AudioURL        string
	ImageURL        string
	PublishedAt     *time.Time
	DurationSeconds int
}

// EpisodeRef はタイトル照合に必要な最小限のエピソード情報。
type EpisodeRef struct {
	ID    string
	Title string
}

// Upload はYouTubeチャンネルにアップロードされた動画を表す。
// 1回の同期処理の中でのみ使用し、永続化しない。
type Upload struct {
	VideoID     string
	Title       string
	Description string
	PublishedAt *time.Time
}

// Match はエピソードと動画の対応付けを表す。
type Match struct {
	EpisodeID string
	VideoID   string
	Score     float64
}
