package model

// Stage は同期処理のどの段階で失敗したかを表す。
// 外部のリトライ制御が判断材料にできるよう、エラーと一緒に記録する。
type Stage string

const (
	StageAuthorize   Stage = "authorize"
	StageLoad        Stage = "load"
	StageFetch       Stage = "fetch"
	StageReconcile   Stage = "reconcile"
	StageListUploads Stage = "list_uploads"
	StageMatch       Stage = "match"
	StageWriteBack   Stage = "write_back"
)

// ItemFailure はエピソード単位の保存失敗を表す。
type ItemFailure struct {
	GUID   string `json:"guid"`
	Reason string `json:"reason"`
}

// ReconcileResult はエピソードUPSERTの結果を表す。
type ReconcileResult struct {
	Processed int           `json:"processed"`
	Deferred  int           `json:"deferred"` // 上限超過で次回以降に回した件数
	Failures  []ItemFailure `json:"failures"`
}

// PartialSuccess は1件以上のエピソードが保存できた場合にtrueを返す。
func (r *ReconcileResult) PartialSuccess() bool {
	return r != nil && r.Processed > 0
}

// FeedSyncSummary はRSS同期1回分の結果。
type FeedSyncSummary struct {
	PodcastID         string        `json:"podcast_id"`
	FeedTitle         string        `json:"feed_title"`
	Processed         int           `json:"processed"`
	Skipped           int           `json:"skipped"`
	Deferred          int           `json:"deferred"`
	Failures          []ItemFailure `json:"failures"`
	DetectedChannelID string        `json:"detected_channel_id,omitempty"`
}

// MatchFailure は動画IDの書き戻しに失敗したマッチを表す。
type MatchFailure struct {
	EpisodeID string `json:"episode_id"`
	VideoID   string `json:"video_id"`
	Reason    string `json:"reason"`
}

// YouTubeSyncSummary はYouTube同期1回分の結果。
type YouTubeSyncSummary struct {
	PodcastID      string         `json:"podcast_id"`
	ChannelID      string         `json:"channel_id"`
	UploadsFetched int            `json:"uploads_fetched"`
	Episodes       int            `json:"episodes"`
	Matched        int            `json:"matched"`
	Applied        int            `json:"applied"`
	Failures       []MatchFailure `json:"failures"`
}

// PodcastSyncSummary はRSS同期とYouTube同期をまとめて実行した結果。
// YouTube側の失敗はRSS同期の結果を無効にしないため、エラー文字列として保持する。
type PodcastSyncSummary struct {
	PodcastID    string              `json:"podcast_id"`
	Feed         *FeedSyncSummary    `json:"feed"`
	YouTube      *YouTubeSyncSummary `json:"youtube,omitempty"`
	YouTubeError string              `json:"youtube_error,omitempty"`
	YouTubeErr   error               `json:"-"` // 段階の判定用に元のエラーを保持する
}

// PodcastFailure はスイープ中に失敗したポッドキャストを表す。
type PodcastFailure struct {
	PodcastID string
	Stage     Stage
	Err       error
}

// SweepReport は全ポッドキャストを対象にした同期の集計結果。
type SweepReport struct {
	Total     int
	Succeeded int
	Failures  []PodcastFailure
}
