// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/castsite/internal/model"
)

// PodcastRepository はポッドキャストデータの永続化インターフェース。
type PodcastRepository interface {
	// FindByID は指定IDのポッドキャストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Podcast, error)

	// FindByRSSURL はRSS URLでポッドキャストを検索する。見つからない場合はnilを返す。
	FindByRSSURL(ctx context.Context, rssURL string) (*model.Podcast, error)

	// Create はポッドキャストを作成する。
	// 同じRSS URLが登録済みの場合は model.ErrDuplicatePodcast を返す。
	Create(ctx context.Context, podcast *model.Podcast) error

	// UpdateFeedMetadata はフィードから取得したタイトル・説明・カバー画像を更新する。
	UpdateFeedMetadata(ctx context.Context, id, title, description, imageURL string) error

	// SetYouTubeChannelID はYouTubeチャンネルIDを上書きする。
	SetYouTubeChannelID(ctx context.Context, id, channelID string) error

	// FillYouTubeChannelID はチャンネルIDが未設定の場合のみ設定する。
	// 設定した場合はtrueを返す。
	FillYouTubeChannelID(ctx context.Context, id, channelID string) (bool, error)

	// UpdateMirroredImage はストレージに複製したカバー画像のURLを更新する。
	UpdateMirroredImage(ctx context.Context, id, mirroredURL string) error

	// ListAll は全ポッドキャストを作成日時順に返す。
	ListAll(ctx context.Context) ([]*model.Podcast, error)
}

// EpisodeRepository はエピソードデータの永続化インターフェース。
type EpisodeRepository interface {
	// UpsertByGUID は(podcast_id, guid)をキーにエピソードを冪等に保存する。
	// 既存行のyoutube_video_idは変更しない。保存後のIDをepisode.IDに設定する。
	UpsertByGUID(ctx context.Context, episode *model.Episode) error

	// ListRefsByPodcast はタイトル照合用にIDとタイトルのみを返す。
	// 公開日時の新しい順に並ぶ。
	ListRefsByPodcast(ctx context.Context, podcastID string) ([]model.EpisodeRef, error)

	// UpdateYouTubeVideoID はエピソードに動画IDを設定する。
	UpdateYouTubeVideoID(ctx context.Context, episodeID, videoID string) error
}

// SessionRepository はセッションデータの参照インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}
