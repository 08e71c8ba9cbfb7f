// Package app はコマンドの解析と依存関係のワイヤリングを行い、各モードを起動する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/castsite/internal/auth"
	"github.com/hitoshi/castsite/internal/config"
	"github.com/hitoshi/castsite/internal/database"
	"github.com/hitoshi/castsite/internal/handler"
	"github.com/hitoshi/castsite/internal/logger"
	"github.com/hitoshi/castsite/internal/metrics"
	"github.com/hitoshi/castsite/internal/middleware"
)

// ErrMissingPodcastID はsyncコマンドにポッドキャストIDが指定されていないことを表す。
var ErrMissingPodcastID = errors.New("usage: castsite sync <podcast-id>")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(logger.SetupWithLevel(w, logger.ParseLevel(cfg.LogLevel)))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// 引数の検証は設定読み込みより先に行う
	var podcastID string
	if cmd == CommandSync {
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return ErrMissingPodcastID
		}
		podcastID = strings.TrimSpace(args[1])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSync:
		return runSync(ctx, cfg, w, podcastID)
	case CommandSweep:
		return runSweep(ctx, cfg, w)
	default:
		return runServe(ctx, cfg)
	}
}

// withComponents はDB接続を開いて依存関係を組み立て、fnに渡す。
func withComponents(ctx context.Context, cfg *config.Config, fn func(c *components, db pinger) error) error {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	c, err := buildComponents(ctx, cfg, db, slog.Default())
	if err != nil {
		return err
	}
	return fn(c, db)
}

// pinger はヘルスチェック用のDB疎通確認インターフェース。
type pinger interface {
	PingContext(ctx context.Context) error
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	return withComponents(ctx, cfg, func(c *components, db pinger) error {
		logger := slog.Default()

		general := middleware.NewRateLimiter(withRate(middleware.GeneralRateLimiterConfig(), cfg.RateLimitGeneral), logger)
		defer general.Stop()
		syncLimiter := middleware.NewRateLimiter(withRate(middleware.SyncRateLimiterConfig(), cfg.RateLimitSync), logger)
		defer syncLimiter.Stop()

		router := handler.NewRouter(&handler.RouterDeps{
			Logger:            logger,
			SessionFinder:     c.sessions,
			CORSAllowedOrigin: cfg.CORSAllowedOrigin,
			GeneralLimiter:    general,
			SyncLimiter:       syncLimiter,
			HealthChecker:     db,
			MetricsHandler:    metrics.SetupMetricsRoute(c.registry),
			SyncService:       c.service,
		})

		server := &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// 同期はフィード取得とYouTubeのページングを含むため長めに取る
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("API server starting", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server listen error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		slog.Info("API server stopped gracefully")
		return nil
	})
}

// runWorker はワーカーモードで起動し、SWEEP_INTERVALごとに全ポッドキャストを同期する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	return withComponents(ctx, cfg, func(c *components, _ pinger) error {
		scheduler := newScheduler(cfg, c, slog.Default())

		slog.Info("worker starting",
			slog.Duration("sweep_interval", cfg.SweepInterval),
			slog.Int("max_concurrent", cfg.SweepConcurrency),
			slog.Bool("youtube_enabled", c.service.YouTubeEnabled()),
		)

		// ctxがキャンセルされるまでブロックする
		scheduler.Start(ctx, cfg.SweepInterval)

		slog.Info("worker stopped gracefully")
		return nil
	})
}

// runSync は指定したポッドキャスト1件をシステム権限で同期し、結果をJSONで出力する。
func runSync(ctx context.Context, cfg *config.Config, w io.Writer, podcastID string) error {
	return withComponents(ctx, cfg, func(c *components, _ pinger) error {
		summary, err := c.service.SyncPodcast(auth.WithSystemCaller(ctx), podcastID)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return writeResult(w, summary)
	})
}

// runSweep は全ポッドキャストのスイープを1回実行し、集計をJSONで出力する。
// 一部のポッドキャストが失敗しても、一覧の取得に成功していればエラーにしない。
func runSweep(ctx context.Context, cfg *config.Config, w io.Writer) error {
	return withComponents(ctx, cfg, func(c *components, _ pinger) error {
		report, err := newScheduler(cfg, c, slog.Default()).RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		return writeResult(w, newSweepOutput(report))
	})
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// withRate はreq/min単位の設定値でレート制限設定を上書きする。0以下なら既定値のまま。
func withRate(c middleware.RateLimiterConfig, perMinute int) middleware.RateLimiterConfig {
	if perMinute > 0 {
		c.Rate = rate.Limit(float64(perMinute) / 60.0)
		c.Burst = perMinute
	}
	return c
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
