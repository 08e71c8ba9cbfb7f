package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/castsite/internal/model"
)

// PostgresEpisodeRepo はPostgreSQLを使用したエピソードリポジトリ。
type PostgresEpisodeRepo struct {
	db *sql.DB
}

// NewPostgresEpisodeRepo はPostgresEpisodeRepoを生成する。
func NewPostgresEpisodeRepo(db *sql.DB) *PostgresEpisodeRepo {
	return &PostgresEpisodeRepo{db: db}
}

// UpsertByGUID は(podcast_id, guid)をキーにエピソードを冪等に保存する。
// youtube_video_idはマッチング処理の管轄なので、INSERT時もUPDATE時も書き込まない。
func (r *PostgresEpisodeRepo) UpsertByGUID(ctx context.Context, ep *model.Episode) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO episodes (id, podcast_id, guid, title, description, audio_url, image_url,
		                       published_at, duration_seconds, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 ON CONFLICT (podcast_id, guid) DO UPDATE SET
		    title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    audio_url = EXCLUDED.audio_url,
		    image_url = EXCLUDED.image_url,
		    published_at = EXCLUDED.published_at,
		    duration_seconds = EXCLUDED.duration_seconds,
		    slug = EXCLUDED.slug,
		    updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		ep.ID, ep.PodcastID, ep.GUID, ep.Title, ep.Description,
		nullString(ep.AudioURL), nullString(ep.ImageURL), ep.PublishedAt,
		ep.DurationSeconds, nullString(ep.Slug), ep.UpdatedAt,
	).Scan(&ep.ID)
	if err != nil {
		return fmt.Errorf("エピソードの保存に失敗しました: %w", err)
	}
	return nil
}

// ListRefsByPodcast はタイトル照合用にIDとタイトルのみを返す。
func (r *PostgresEpisodeRepo) ListRefsByPodcast(ctx context.Context, podcastID string) ([]model.EpisodeRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title FROM episodes
		 WHERE podcast_id = $1
		 ORDER BY published_at DESC NULLS LAST, created_at DESC`,
		podcastID,
	)
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var refs []model.EpisodeRef
	for rows.Next() {
		var ref model.EpisodeRef
		if err := rows.Scan(&ref.ID, &ref.Title); err != nil {
			return nil, fmt.Errorf("エピソード行の読み取りに失敗しました: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エピソード一覧の走査に失敗しました: %w", err)
	}

	return refs, nil
}

// UpdateYouTubeVideoID はエピソードに動画IDを設定する。
func (r *PostgresEpisodeRepo) UpdateYouTubeVideoID(ctx context.Context, episodeID, videoID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET youtube_video_id = $2, updated_at = now() WHERE id = $1`,
		episodeID, videoID,
	)
	if err != nil {
		return fmt.Errorf("動画IDの更新に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("動画IDの更新対象エピソードが存在しません: %s", episodeID)
	}
	return nil
}

// compile-time interface check
var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
