// Package syncer はポッドキャスト単位の同期処理を提供する。
// RSSフィードの取得からエピソード保存、YouTube動画との照合と書き戻しまでを順に実行する。
//
// 同じポッドキャストに対する同期が並行した場合、各フィールドは後に書き込んだ側の値になる。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/castsite/internal/metrics"
	"github.com/hitoshi/castsite/internal/model"
	"github.com/hitoshi/castsite/internal/repository"
)

// DefaultMaxUploads はYouTube同期で取得する動画数の上限。
const DefaultMaxUploads = 200

// Authorizer は呼び出し元がポッドキャストを操作できるかを判定する。
type Authorizer interface {
	Authorize(ctx context.Context, podcastID string) error
}

// FeedFetcher はRSSフィードを取得・正規化する。
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (*model.ParsedFeed, error)
}

// EpisodeReconciler はエピソードを(podcast_id, guid)単位で保存する。
type EpisodeReconciler interface {
	Reconcile(ctx context.Context, podcastID string, episodes []model.ParsedEpisode) (*model.ReconcileResult, error)
}

// UploadLister はYouTubeチャンネルの最新アップロードを取得する。
type UploadLister interface {
	ListUploads(ctx context.Context, channelID string, limit int) ([]model.Upload, error)
}

// EpisodeMatcher はエピソードと動画をタイトルで対応付ける。
type EpisodeMatcher interface {
	Match(episodes []model.EpisodeRef, uploads []model.Upload) []model.Match
}

// ArtworkMirror はカバー画像をオブジェクトストレージに複製し、公開URLを返す。
type ArtworkMirror interface {
	Mirror(ctx context.Context, podcastID, imageURL string) (string, error)
}

// Dependencies はServiceの必須依存。
type Dependencies struct {
	Podcasts   repository.PodcastRepository
	Episodes   repository.EpisodeRepository
	Authorizer Authorizer
	Fetcher    FeedFetcher
	Reconciler EpisodeReconciler
	Matcher    EpisodeMatcher
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithUploadLister はYouTube同期に使うUploadListerを設定する。
// 未設定の場合、YouTube同期はmodel.ErrYouTubeDisabledを返す。
func WithUploadLister(l UploadLister) Option {
	return func(s *Service) { s.lister = l }
}

// WithArtworkMirror はカバー画像の複製先を設定する。
func WithArtworkMirror(m ArtworkMirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxUploads はYouTube同期で取得する動画数の上限を設定する。
func WithMaxUploads(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploads = n
		}
	}
}

// Service はポッドキャストの同期を実行する。
// 実行間で状態を持たず、毎回フィードと動画一覧から結果を再計算する。
type Service struct {
	podcasts   repository.PodcastRepository
	episodes   repository.EpisodeRepository
	authorizer Authorizer
	fetcher    FeedFetcher
	reconciler EpisodeReconciler
	matcher    EpisodeMatcher
	lister     UploadLister
	mirror     ArtworkMirror
	metrics    metrics.MetricsCollector
	maxUploads int
	logger     *slog.Logger
}

// NewService はServiceを生成する。
func NewService(deps Dependencies, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		podcasts:   deps.Podcasts,
		episodes:   deps.Episodes,
		authorizer: deps.Authorizer,
		fetcher:    deps.Fetcher,
		reconciler: deps.Reconciler,
		matcher:    deps.Matcher,
		metrics:    metrics.Nop{},
		maxUploads: DefaultMaxUploads,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// YouTubeEnabled はYouTube同期が利用可能かどうかを返す。
func (s *Service) YouTubeEnabled() bool {
	return s.lister != nil
}

// SyncFeed はRSSフィードを取得し、ポッドキャストのメタデータとエピソードを更新する。
// 認可失敗とフィード全体の取得・解析失敗のみをエラーとして返す。
// エピソード単位の保存失敗は結果のFailuresに含める。
func (s *Service) SyncFeed(ctx context.Context, podcastID string) (*model.FeedSyncSummary, error) {
	start := time.Now()

	podcast, err := s.authorizeAndLoad(ctx, podcastID)
	if err != nil {
		s.recordFailure(metrics.KindRSS, err)
		return nil, err
	}

	summary, err := s.syncFeed(ctx, podcast)
	s.metrics.RecordSyncLatency(metrics.KindRSS, time.Since(start))
	if err != nil {
		s.recordFailure(metrics.KindRSS, err)
		return nil, err
	}
	s.metrics.RecordSyncSuccess(metrics.KindRSS)
	return summary, nil
}

// SyncYouTube はチャンネルの最新アップロードとエピソードをタイトルで照合し、動画IDを書き戻す。
// channelIDが空の場合は登録済みのチャンネルを使う。
// 動画一覧の取得に失敗した場合は照合を行わずにエラーを返す。
func (s *Service) SyncYouTube(ctx context.Context, podcastID, channelID string) (*model.YouTubeSyncSummary, error) {
	start := time.Now()

	podcast, err := s.authorizeAndLoad(ctx, podcastID)
	if err != nil {
		s.recordFailure(metrics.KindYouTube, err)
		return nil, err
	}

	summary, err := s.syncYouTube(ctx, podcast, channelID)
	s.metrics.RecordSyncLatency(metrics.KindYouTube, time.Since(start))
	if err != nil {
		s.recordFailure(metrics.KindYouTube, err)
		return nil, err
	}
	s.metrics.RecordSyncSuccess(metrics.KindYouTube)
	return summary, nil
}

// SyncPodcast はRSS同期を行い、チャンネルが判明していればYouTube同期を続けて行う。
// YouTube同期の失敗はRSS同期の結果を無効にせず、結果のYouTubeErrorに記録する。
func (s *Service) SyncPodcast(ctx context.Context, podcastID string) (*model.PodcastSyncSummary, error) {
	start := time.Now()

	podcast, err := s.authorizeAndLoad(ctx, podcastID)
	if err != nil {
		s.recordFailure(metrics.KindRSS, err)
		return nil, err
	}

	feedSummary, err := s.syncFeed(ctx, podcast)
	s.metrics.RecordSyncLatency(metrics.KindRSS, time.Since(start))
	if err != nil {
		s.recordFailure(metrics.KindRSS, err)
		return nil, err
	}
	s.metrics.RecordSyncSuccess(metrics.KindRSS)

	result := &model.PodcastSyncSummary{
		PodcastID: podcastID,
		Feed:      feedSummary,
	}

	if podcast.YouTubeChannelID == "" || s.lister == nil {
		return result, nil
	}

	ytStart := time.Now()
	ytSummary, err := s.syncYouTube(ctx, podcast, "")
	s.metrics.RecordSyncLatency(metrics.KindYouTube, time.Since(ytStart))
	if err != nil {
		s.recordFailure(metrics.KindYouTube, err)
		s.logger.Warn("YouTube同期に失敗しました。RSS同期の結果は保持します",
			slog.String("podcast_id", podcastID),
			slog.String("stage", string(model.StageOf(err))),
			slog.String("error", err.Error()),
		)
		result.YouTubeError = err.Error()
		result.YouTubeErr = err
		return result, nil
	}
	s.metrics.RecordSyncSuccess(metrics.KindYouTube)
	result.YouTube = ytSummary

	return result, nil
}

// ImportPodcast はRSSフィードからポッドキャストを新規作成し、エピソードを取り込む。
// フィードの取得と解析に成功した場合のみポッドキャストを作成する。
func (s *Service) ImportPodcast(ctx context.Context, ownerID, rssURL string) (*model.Podcast, *model.FeedSyncSummary, error) {
	if ownerID == "" {
		return nil, nil, &model.StageError{Stage: model.StageAuthorize, Err: &model.AuthorizationError{}}
	}

	existing, err := s.podcasts.FindByRSSURL(ctx, rssURL)
	if err != nil {
		return nil, nil, &model.StageError{Stage: model.StageLoad, Err: fmt.Errorf("failed to find podcast by rss url: %w", err)}
	}
	if existing != nil {
		return nil, nil, &model.StageError{PodcastID: existing.ID, Stage: model.StageLoad, Err: model.ErrDuplicatePodcast}
	}

	parsed, err := s.fetcher.Fetch(ctx, rssURL)
	if err != nil {
		s.recordFailure(metrics.KindRSS, &model.StageError{Stage: model.StageFetch, Err: err})
		return nil, nil, &model.StageError{Stage: model.StageFetch, Err: err}
	}

	now := time.Now()
	podcast := &model.Podcast{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		RSSURL:           rssURL,
		YouTubeChannelID: parsed.YouTubeChannelID,
		Title:            parsed.Title,
		Description:      parsed.Description,
		ImageURL:         parsed.ImageURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.podcasts.Create(ctx, podcast); err != nil {
		return nil, nil, &model.StageError{
			Stage: model.StageReconcile,
			Err:   &model.StorageError{Op: "create podcast", Key: rssURL, Err: err},
		}
	}

	s.logger.Info("ポッドキャストを作成しました",
		slog.String("podcast_id", podcast.ID),
		slog.String("owner_id", ownerID),
		slog.String("rss_url", rssURL),
	)

	summary, err := s.ingest(ctx, podcast, parsed, false)
	if err != nil {
		return podcast, nil, err
	}
	summary.DetectedChannelID = podcast.YouTubeChannelID
	s.metrics.RecordSyncSuccess(metrics.KindRSS)
	return podcast, summary, nil
}

// authorizeAndLoad は認可を確認してからポッドキャストを読み込む。
// 認可に失敗した場合は以降のI/Oを一切行わない。
func (s *Service) authorizeAndLoad(ctx context.Context, podcastID string) (*model.Podcast, error) {
	if err := s.authorizer.Authorize(ctx, podcastID); err != nil {
		return nil, &model.StageError{PodcastID: podcastID, Stage: model.StageAuthorize, Err: err}
	}

	podcast, err := s.podcasts.FindByID(ctx, podcastID)
	if err != nil {
		return nil, &model.StageError{PodcastID: podcastID, Stage: model.StageLoad, Err: fmt.Errorf("failed to load podcast: %w", err)}
	}
	if podcast == nil {
		return nil, &model.StageError{PodcastID: podcastID, Stage: model.StageLoad, Err: model.ErrPodcastNotFound}
	}
	return podcast, nil
}

// syncFeed は読み込み済みのポッドキャストに対してRSS同期を行う。
func (s *Service) syncFeed(ctx context.Context, podcast *model.Podcast) (*model.FeedSyncSummary, error) {
	parsed, err := s.fetcher.Fetch(ctx, podcast.RSSURL)
	if err != nil {
		s.logger.Warn("フィードの取得に失敗しました",
			slog.String("podcast_id", podcast.ID),
			slog.String("rss_url", podcast.RSSURL),
			slog.String("error", err.Error()),
		)
		return nil, &model.StageError{PodcastID: podcast.ID, Stage: model.StageFetch, Err: err}
	}

	return s.ingest(ctx, podcast, parsed, true)
}

// ingest は取得済みのフィードをポッドキャストに反映する。
// メタデータとカバー画像の更新失敗は警告に留め、エピソードの保存を優先する。
func (s *Service) ingest(ctx context.Context, podcast *model.Podcast, parsed *model.ParsedFeed, updateMetadata bool) (*model.FeedSyncSummary, error) {
	if updateMetadata {
		if err := s.podcasts.UpdateFeedMetadata(ctx, podcast.ID, parsed.Title, parsed.Description, parsed.ImageURL); err != nil {
			s.logger.Warn("ポッドキャストのメタデータ更新に失敗しました",
				slog.String("podcast_id", podcast.ID),
				slog.String("error", err.Error()),
			)
		} else {
			podcast.Title = parsed.Title
			podcast.Description = parsed.Description
			podcast.ImageURL = parsed.ImageURL
		}
	}

	summary := &model.FeedSyncSummary{
		PodcastID: podcast.ID,
		FeedTitle: parsed.Title,
		Skipped:   parsed.Skipped,
	}

	if parsed.YouTubeChannelID != "" && podcast.YouTubeChannelID == "" {
		filled, err := s.podcasts.FillYouTubeChannelID(ctx, podcast.ID, parsed.YouTubeChannelID)
		if err != nil {
			s.logger.Warn("検出したYouTubeチャンネルの保存に失敗しました",
				slog.String("podcast_id", podcast.ID),
				slog.String("channel_id", parsed.YouTubeChannelID),
				slog.String("error", err.Error()),
			)
		} else if filled {
			podcast.YouTubeChannelID = parsed.YouTubeChannelID
			summary.DetectedChannelID = parsed.YouTubeChannelID
		}
	}

	result, err := s.reconciler.Reconcile(ctx, podcast.ID, parsed.Episodes)
	if err != nil {
		return nil, &model.StageError{PodcastID: podcast.ID, Stage: model.StageReconcile, Err: err}
	}
	summary.Processed = result.Processed
	summary.Deferred = result.Deferred
	summary.Failures = result.Failures

	s.metrics.RecordEpisodesUpserted(result.Processed)
	s.metrics.RecordEpisodeFailures(len(result.Failures))

	s.mirrorArtwork(ctx, podcast)

	s.logger.Info("RSS同期が完了しました",
		slog.String("podcast_id", podcast.ID),
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("deferred", summary.Deferred),
		slog.Int("failed", len(summary.Failures)),
	)

	return summary, nil
}

// mirrorArtwork はカバー画像をストレージに複製する。失敗しても同期は継続する。
func (s *Service) mirrorArtwork(ctx context.Context, podcast *model.Podcast) {
	if s.mirror == nil || podcast.ImageURL == "" {
		return
	}

	mirrored, err := s.mirror.Mirror(ctx, podcast.ID, podcast.ImageURL)
	if err != nil {
		s.logger.Warn("カバー画像の複製に失敗しました",
			slog.String("podcast_id", podcast.ID),
			slog.String("image_url", podcast.ImageURL),
			slog.String("error", err.Error()),
		)
		return
	}
	if mirrored == podcast.MirroredImageURL {
		return
	}

	if err := s.podcasts.UpdateMirroredImage(ctx, podcast.ID, mirrored); err != nil {
		s.logger.Warn("複製したカバー画像URLの保存に失敗しました",
			slog.String("podcast_id", podcast.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	podcast.MirroredImageURL = mirrored
}

// syncYouTube は読み込み済みのポッドキャストに対してYouTube同期を行う。
func (s *Service) syncYouTube(ctx context.Context, podcast *model.Podcast, channelID string) (*model.YouTubeSyncSummary, error) {
	if s.lister == nil {
		return nil, &model.StageError{PodcastID: podcast.ID, Stage: model.StageListUploads, Err: model.ErrYouTubeDisabled}
	}

	channel := channelID
	if channel == "" {
		channel = podcast.YouTubeChannelID
	}
	if channel == "" {
		return nil, &model.StageError{PodcastID: podcast.ID, Stage: model.StageLoad, Err: model.ErrChannelNotSet}
	}

	refs, err := s.episodes.ListRefsByPodcast(ctx, podcast.ID)
	if err != nil {
		return nil, &model.StageError{PodcastID: podcast.ID, Stage: model.StageLoad, Err: fmt.Errorf("failed to list episodes: %w", err)}
	}

	uploads, err := s.lister.ListUploads(ctx, channel, s.maxUploads)
	if err != nil {
		s.metrics.RecordYouTubeError(youtubeErrorReason(err))
		s.logger.Warn("YouTubeのアップロード一覧の取得に失敗しました",
			slog.String("podcast_id", podcast.ID),
			slog.String("channel_id", channel),
			slog.String("error", err.Error()),
		)
		return nil, &model.StageError{PodcastID: podcast.ID, Stage: model.StageListUploads, Err: err}
	}

	if channelID != "" && channelID != podcast.YouTubeChannelID {
		if err := s.podcasts.SetYouTubeChannelID(ctx, podcast.ID, channelID); err != nil {
			s.logger.Warn("YouTubeチャンネルIDの保存に失敗しました",
				slog.String("podcast_id", podcast.ID),
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
		} else {
			podcast.YouTubeChannelID = channelID
		}
	}

	matches := s.matcher.Match(refs, uploads)

	summary := &model.YouTubeSyncSummary{
		PodcastID:      podcast.ID,
		ChannelID:      channel,
		UploadsFetched: len(uploads),
		Episodes:       len(refs),
		Matched:        len(matches),
		Failures:       []model.MatchFailure{},
	}

	for _, m := range matches {
		if err := s.episodes.UpdateYouTubeVideoID(ctx, m.EpisodeID, m.VideoID); err != nil {
			storageErr := &model.StorageError{Op: "update youtube_video_id", Key: m.EpisodeID, Err: err}
			summary.Failures = append(summary.Failures, model.MatchFailure{
				EpisodeID: m.EpisodeID,
				VideoID:   m.VideoID,
				Reason:    storageErr.Error(),
			})
			s.logger.Warn("動画IDの書き戻しに失敗しました",
				slog.String("podcast_id", podcast.ID),
				slog.String("episode_id", m.EpisodeID),
				slog.String("video_id", m.VideoID),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.Applied++
	}

	s.metrics.RecordMatchesApplied(summary.Applied)

	s.logger.Info("YouTube同期が完了しました",
		slog.String("podcast_id", podcast.ID),
		slog.String("channel_id", channel),
		slog.Int("uploads", summary.UploadsFetched),
		slog.Int("matched", summary.Matched),
		slog.Int("applied", summary.Applied),
		slog.Int("failed", len(summary.Failures)),
	)

	return summary, nil
}

func (s *Service) recordFailure(kind string, err error) {
	s.metrics.RecordSyncFailure(kind, string(model.StageOf(err)))
}

// youtubeErrorReason はメトリクスのラベルに使う失敗原因を返す。
func youtubeErrorReason(err error) string {
	var quotaErr *model.QuotaExceededError
	var notFoundErr *model.ChannelNotFoundError
	switch {
	case errors.As(err, &quotaErr):
		return "quota"
	case errors.As(err, &notFoundErr):
		return "not_found"
	default:
		return "transport"
	}
}
