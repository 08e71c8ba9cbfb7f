package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/castsite/internal/model"
)

// PostgresPodcastRepo はPostgreSQLを使用したポッドキャストリポジトリ。
type PostgresPodcastRepo struct {
	db *sql.DB
}

// NewPostgresPodcastRepo はPostgresPodcastRepoを生成する。
func NewPostgresPodcastRepo(db *sql.DB) *PostgresPodcastRepo {
	return &PostgresPodcastRepo{db: db}
}

const podcastColumns = `id, owner_id, rss_url, youtube_channel_id, title, description,
        image_url, mirrored_image_url, theme, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPodcast(row rowScanner) (*model.Podcast, error) {
	p := &model.Podcast{}
	var channelID, imageURL, mirroredURL sql.NullString

	if err := row.Scan(
		&p.ID, &p.OwnerID, &p.RSSURL, &channelID, &p.Title, &p.Description,
		&imageURL, &mirroredURL, &p.Theme, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.YouTubeChannelID = nullStringValue(channelID)
	p.ImageURL = nullStringValue(imageURL)
	p.MirroredImageURL = nullStringValue(mirroredURL)
	return p, nil
}

// FindByID は指定IDのポッドキャストを取得する。見つからない場合やIDがUUIDとして不正な場合はnilを返す。
func (r *PostgresPodcastRepo) FindByID(ctx context.Context, id string) (*model.Podcast, error) {
	p, err := scanPodcast(r.db.QueryRowContext(ctx,
		`SELECT `+podcastColumns+` FROM podcasts WHERE id = $1`, id))
	if err == sql.ErrNoRows || isInvalidTextRepresentation(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ポッドキャストの取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindByRSSURL はRSS URLでポッドキャストを検索する。見つからない場合はnilを返す。
func (r *PostgresPodcastRepo) FindByRSSURL(ctx context.Context, rssURL string) (*model.Podcast, error) {
	p, err := scanPodcast(r.db.QueryRowContext(ctx,
		`SELECT `+podcastColumns+` FROM podcasts WHERE rss_url = $1`, rssURL))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RSS URLによるポッドキャストの検索に失敗しました: %w", err)
	}
	return p, nil
}

// Create はポッドキャストを作成する。
func (r *PostgresPodcastRepo) Create(ctx context.Context, p *model.Podcast) error {
	theme := p.Theme
	if len(theme) == 0 {
		theme = []byte("{}")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO podcasts (id, owner_id, rss_url, youtube_channel_id, title, description,
		                       image_url, mirrored_image_url, theme, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OwnerID, p.RSSURL, nullString(p.YouTubeChannelID), p.Title, p.Description,
		nullString(p.ImageURL), nullString(p.MirroredImageURL), theme, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicatePodcast
	}
	if err != nil {
		return fmt.Errorf("ポッドキャストの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateFeedMetadata はフィードから取得したタイトル・説明・カバー画像を更新する。
func (r *PostgresPodcastRepo) UpdateFeedMetadata(ctx context.Context, id, title, description, imageURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE podcasts SET title = $2, description = $3, image_url = $4, updated_at = now()
		 WHERE id = $1`,
		id, title, description, nullString(imageURL),
	)
	if err != nil {
		return fmt.Errorf("ポッドキャスト情報の更新に失敗しました: %w", err)
	}
	return nil
}

// SetYouTubeChannelID はYouTubeチャンネルIDを上書きする。
func (r *PostgresPodcastRepo) SetYouTubeChannelID(ctx context.Context, id, channelID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE podcasts SET youtube_channel_id = $2, updated_at = now() WHERE id = $1`,
		id, nullString(channelID),
	)
	if err != nil {
		return fmt.Errorf("YouTubeチャンネルIDの更新に失敗しました: %w", err)
	}
	return nil
}

// FillYouTubeChannelID はチャンネルIDが未設定の場合のみ設定する。
func (r *PostgresPodcastRepo) FillYouTubeChannelID(ctx context.Context, id, channelID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE podcasts SET youtube_channel_id = $2, updated_at = now()
		 WHERE id = $1 AND (youtube_channel_id IS NULL OR youtube_channel_id = '')`,
		id, channelID,
	)
	if err != nil {
		return false, fmt.Errorf("YouTubeチャンネルIDの設定に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// UpdateMirroredImage はストレージに複製したカバー画像のURLを更新する。
func (r *PostgresPodcastRepo) UpdateMirroredImage(ctx context.Context, id, mirroredURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE podcasts SET mirrored_image_url = $2, updated_at = now() WHERE id = $1`,
		id, nullString(mirroredURL),
	)
	if err != nil {
		return fmt.Errorf("カバー画像URLの更新に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全ポッドキャストを作成日時順に返す。
func (r *PostgresPodcastRepo) ListAll(ctx context.Context) ([]*model.Podcast, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+podcastColumns+` FROM podcasts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ポッドキャスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var podcasts []*model.Podcast
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("ポッドキャスト行の読み取りに失敗しました: %w", err)
		}
		podcasts = append(podcasts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ポッドキャスト一覧の走査に失敗しました: %w", err)
	}

	return podcasts, nil
}

// compile-time interface check
var _ PodcastRepository = (*PostgresPodcastRepo)(nil)
