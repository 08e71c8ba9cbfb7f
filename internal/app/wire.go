package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/castsite/internal/artwork"
	"github.com/hitoshi/castsite/internal/auth"
	"github.com/hitoshi/castsite/internal/config"
	"github.com/hitoshi/castsite/internal/episode"
	"github.com/hitoshi/castsite/internal/feed"
	"github.com/hitoshi/castsite/internal/match"
	"github.com/hitoshi/castsite/internal/metrics"
	"github.com/hitoshi/castsite/internal/repository"
	"github.com/hitoshi/castsite/internal/security"
	"github.com/hitoshi/castsite/internal/syncer"
	"github.com/hitoshi/castsite/internal/worker/sweep"
	"github.com/hitoshi/castsite/internal/youtube"
)

// components はserve、worker、sync、sweepの各モードで共有する依存関係。
type components struct {
	podcasts *repository.PostgresPodcastRepo
	sessions *repository.PostgresSessionRepo
	service  *syncer.Service
	registry *prometheus.Registry
}

// buildComponents はDB接続と設定から同期処理の依存関係を組み立てる。
func buildComponents(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) (*components, error) {
	podcastRepo := repository.NewPostgresPodcastRepo(db)
	episodeRepo := repository.NewPostgresEpisodeRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	fetcher := feed.NewFetcher(ssrfGuard, logger,
		feed.WithTimeout(cfg.FetchTimeout),
		feed.WithMaxBodySize(cfg.FetchMaxSize),
	)
	reconciler := episode.NewReconciler(episodeRepo, sanitizer, logger, cfg.EpisodeCap)
	matcher := match.NewMatcher(match.NewNormalizer(cfg.MatchPrefixes, cfg.MatchSuffixes), cfg.MatchThreshold)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	opts := []syncer.Option{
		syncer.WithMetrics(collector),
		syncer.WithMaxUploads(cfg.YouTubeMaxUploads),
	}

	if cfg.YouTubeEnabled() {
		lister, err := youtube.NewLister(ctx, youtube.Config{
			APIKey:   cfg.YouTubeAPIKey,
			Timeout:  cfg.YouTubeTimeout,
			Interval: cfg.YouTubeInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create youtube lister: %w", err)
		}
		opts = append(opts, syncer.WithUploadLister(lister))
	} else {
		logger.Info("YOUTUBE_API_KEYが未設定のためYouTube同期を無効化します")
	}

	if cfg.ArtworkMirrorEnabled() {
		store := artwork.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		opts = append(opts, syncer.WithArtworkMirror(artwork.NewMirror(ssrfGuard, store, logger)))
	}

	service := syncer.NewService(syncer.Dependencies{
		Podcasts:   podcastRepo,
		Episodes:   episodeRepo,
		Authorizer: auth.NewOwnerAuthorizer(podcastRepo),
		Fetcher:    fetcher,
		Reconciler: reconciler,
		Matcher:    matcher,
	}, logger, opts...)

	return &components{
		podcasts: podcastRepo,
		sessions: sessionRepo,
		service:  service,
		registry: registry,
	}, nil
}

// newScheduler は設定に従ってスイープのスケジューラを生成する。
func newScheduler(cfg *config.Config, c *components, logger *slog.Logger) *sweep.Scheduler {
	policy := sweep.RetryPolicy{
		MaxAttempts:    cfg.SweepRetryAttempts,
		InitialBackoff: cfg.SweepRetryBackoff,
		MaxBackoff:     cfg.SweepRetryMaxBackoff,
	}
	return sweep.NewScheduler(c.podcasts, c.service, logger, cfg.SweepConcurrency, sweep.WithRetryPolicy(policy))
}
