// Package episode はフィードから得たエピソードをストレージへ冪等に反映する。
package episode

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/hitoshi/castsite/internal/model"
	"github.com/hitoshi/castsite/internal/repository"
	"github.com/hitoshi/castsite/internal/security"
)

// DefaultCap は1回の同期で処理するエピソード数の上限。
const DefaultCap = 150

const maxSlugLength = 200

// Reconciler はエピソードを(podcast_id, guid)をキーにUPSERTする。
// 1件の保存失敗は記録して次のエピソードへ進み、バッチ全体は中断しない。
type Reconciler struct {
	episodeRepo repository.EpisodeRepository
	sanitizer   security.ContentSanitizer
	logger      *slog.Logger
	maxItems    int
	now         func() time.Time
}

// NewReconciler はReconcilerを生成する。maxItemsが0以下の場合はDefaultCapを使う。
func NewReconciler(
	episodeRepo repository.EpisodeRepository,
	sanitizer security.ContentSanitizer,
	logger *slog.Logger,
	maxItems int,
) *Reconciler {
	if maxItems <= 0 {
		maxItems = DefaultCap
	}
	return &Reconciler{
		episodeRepo: episodeRepo,
		sanitizer:   sanitizer,
		logger:      logger,
		maxItems:    maxItems,
		now:         time.Now,
	}
}

// Reconcile は先頭から最大maxItems件のエピソードを保存する。
// 上限を超えた分は次回以降の同期に回し、Deferredに数える。
// エラーを返すのはコンテキストがキャンセルされた場合のみで、その時点までの結果も返す。
func (r *Reconciler) Reconcile(ctx context.Context, podcastID string, episodes []model.ParsedEpisode) (*model.ReconcileResult, error) {
	result := &model.ReconcileResult{Failures: []model.ItemFailure{}}

	batch := episodes
	if len(batch) > r.maxItems {
		batch = batch[:r.maxItems]
		result.Deferred = len(episodes) - r.maxItems
	}

	now := r.now()

	for _, parsed := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ep := r.build(podcastID, parsed, now)
		if err := r.episodeRepo.UpsertByGUID(ctx, ep); err != nil {
			storageErr := &model.StorageError{Op: "upsert episode", Key: parsed.GUID, Err: err}
			r.logger.Warn("エピソードの保存に失敗しました",
				slog.String("podcast_id", podcastID),
				slog.String("guid", parsed.GUID),
				slog.String("error", storageErr.Error()),
			)
			result.Failures = append(result.Failures, model.ItemFailure{
				GUID:   parsed.GUID,
				Reason: storageErr.Error(),
			})
			continue
		}
		result.Processed++
	}

	r.logger.Info("エピソードの反映が完了しました",
		slog.String("podcast_id", podcastID),
		slog.Int("processed", result.Processed),
		slog.Int("failed", len(result.Failures)),
		slog.Int("deferred", result.Deferred),
	)

	return result, nil
}

// build は正規化済みエピソードを保存用のモデルに変換する。
// YouTubeVideoIDは設定しない（保存時にも既存値を上書きしない）。
func (r *Reconciler) build(podcastID string, parsed model.ParsedEpisode, now time.Time) *model.Episode {
	title := r.sanitizer.StripTags(parsed.Title)

	return &model.Episode{
		ID:              uuid.New().String(),
		PodcastID:       podcastID,
		GUID:            parsed.GUID,
		Title:           title,
		Description:     r.sanitizer.Sanitize(parsed.Description),
		AudioURL:        parsed.AudioURL,
		ImageURL:        parsed.ImageURL,
		PublishedAt:     parsed.PublishedAt,
		DurationSeconds: parsed.DurationSeconds,
		Slug:            Slug(title, parsed.GUID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Slug はタイトルからURL用のスラッグを生成する。
// タイトルから生成できない場合はguidを使う。
func Slug(title, guid string) string {
	s := slug.Make(title)
	if s == "" {
		s = slug.Make(guid)
	}
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
		for len(s) > 0 && s[len(s)-1] == '-' {
			s = s[:len(s)-1]
		}
	}
	return s
}
