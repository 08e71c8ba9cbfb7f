// Package sweep は全ポッドキャストを対象にした定期同期を提供する。
// 各ポッドキャストの同期は独立して実行し、1件の失敗で他を止めない。
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/castsite/internal/auth"
	"github.com/hitoshi/castsite/internal/model"
)

// PodcastLister はスイープ対象のポッドキャストを列挙する。
type PodcastLister interface {
	ListAll(ctx context.Context) ([]*model.Podcast, error)
}

// PodcastSyncer はポッドキャスト1件の同期を実行する。
type PodcastSyncer interface {
	SyncPodcast(ctx context.Context, podcastID string) (*model.PodcastSyncSummary, error)
}

// Option はSchedulerの任意設定。
type Option func(*Scheduler)

// WithRetryPolicy は一時的な失敗に対する再試行方針を設定する。
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scheduler) { s.retry = p }
}

// Scheduler はスイープのスケジューリングと並列制御を行う。
// semaphoreパターンで最大並列数を制御しながら各ポッドキャストを同期する。
type Scheduler struct {
	podcasts       PodcastLister
	syncer         PodcastSyncer
	logger         *slog.Logger
	maxConcurrency int
	retry          RetryPolicy
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	podcasts PodcastLister,
	syncer PodcastSyncer,
	logger *slog.Logger,
	maxConcurrency int,
	opts ...Option,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	s := &Scheduler{
		podcasts:       podcasts,
		syncer:         syncer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		retry:          NoRetry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start は指定間隔のティッカーでスイープを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スイープスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スイープスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全ポッドキャストを1回ずつ同期し、集計結果を返す。
// ポッドキャスト一覧の取得に失敗した場合のみエラーを返す。
// 個別の失敗はポッドキャストID・段階とともにSweepReport.Failuresに記録する。
func (s *Scheduler) RunOnce(ctx context.Context) (*model.SweepReport, error) {
	start := time.Now()
	ctx = auth.WithSystemCaller(ctx)

	podcasts, err := s.podcasts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.SweepReport{Total: len(podcasts)}
	if len(podcasts) == 0 {
		s.logger.Info("同期対象のポッドキャストはありません")
		return report, nil
	}

	s.logger.Info("スイープを開始します",
		slog.Int("podcast_count", len(podcasts)),
	)

	// 結果は入力順に並べるため、ポッドキャストごとの枠に書き込む
	failures := make([][]model.PodcastFailure, len(podcasts))

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for i, podcast := range podcasts {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(i int, p *model.Podcast) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			failures[i] = s.syncOne(ctx, p.ID)
		}(i, podcast)
	}

	wg.Wait()

	for _, fs := range failures {
		if len(fs) == 0 {
			report.Succeeded++
			continue
		}
		report.Failures = append(report.Failures, fs...)
	}

	s.logger.Info("スイープが完了しました",
		slog.Int("podcast_count", report.Total),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", len(report.Failures)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return report, nil
}

// syncOne はポッドキャスト1件を同期し、失敗を返す。
// RSS同期が一時的な失敗で終わった場合は再試行方針に従って再実行する。
func (s *Scheduler) syncOne(ctx context.Context, podcastID string) []model.PodcastFailure {
	attempts := max(s.retry.MaxAttempts, 1)

	var (
		summary *model.PodcastSyncSummary
		err     error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := s.retry.CalculateBackoff(attempt - 1)
			s.logger.Info("ポッドキャストの同期を再試行します",
				slog.String("podcast_id", podcastID),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return []model.PodcastFailure{{PodcastID: podcastID, Stage: model.StageOf(err), Err: err}}
			case <-time.After(delay):
			}
		}

		summary, err = s.syncer.SyncPodcast(ctx, podcastID)
		if err == nil || !IsRetryable(err) {
			break
		}
	}

	if err != nil {
		s.logger.Error("ポッドキャストの同期に失敗しました",
			slog.String("podcast_id", podcastID),
			slog.String("stage", string(model.StageOf(err))),
			slog.String("error", err.Error()),
		)
		return []model.PodcastFailure{{PodcastID: podcastID, Stage: model.StageOf(err), Err: err}}
	}

	if summary != nil && summary.YouTubeErr != nil {
		return []model.PodcastFailure{{
			PodcastID: podcastID,
			Stage:     model.StageOf(summary.YouTubeErr),
			Err:       summary.YouTubeErr,
		}}
	}
	return nil
}
