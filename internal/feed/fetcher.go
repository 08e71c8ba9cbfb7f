// Package feed はポッドキャストのRSS/Atomフィードを取得し、正規化されたエピソード列に変換する。
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/castsite/internal/model"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024
	userAgent          = "castsite/1.0 (+podcast site builder)"
)

// URLGuard はSSRF検証のインターフェース。
// security.URLGuardを抽象化してテスト時に差し替えられるようにする。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Option はFetcherの設定を変更する。
type Option func(*Fetcher)

// WithTimeout はフィード取得1回あたりのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBodySize はレスポンスボディの上限バイト数を設定する。
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// Fetcher はフィードのHTTP取得とgofeedによるパースを行う。
// 取得以外の副作用は持たない。
type Fetcher struct {
	guard       URLGuard
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(guard URLGuard, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		guard:       guard,
		logger:      logger,
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch はフィードを取得して正規化する。
// 到達不能・タイムアウト・異常ステータスは *model.FetchError、
// フィードとして解釈できない場合は *model.ParseError を返す。
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*model.ParsedFeed, error) {
	start := time.Now()

	if err := f.guard.ValidateURL(feedURL); err != nil {
		return nil, &model.FetchError{URL: feedURL, Err: err}
	}

	body, err := f.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	raw, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &model.ParseError{URL: feedURL, Err: err}
	}

	parsed := Normalize(raw)

	f.logger.Debug("フィードを取得しました",
		slog.String("feed_url", feedURL),
		slog.Int("episodes", len(parsed.Episodes)),
		slog.Int("skipped", parsed.Skipped),
		slog.String("youtube_channel_id", parsed.YouTubeChannelID),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return parsed, nil
}

func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, error) {
	client := f.guard.NewSafeClient(f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &model.FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.FetchError{
			URL:       feedURL,
			Transient: true,
			Err:       &model.TransportError{Op: "feed fetch", Err: err},
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.FetchError{
			URL:        feedURL,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &model.FetchError{
			URL:       feedURL,
			Transient: isTimeout(err),
			Err:       &model.TransportError{Op: "feed read", Err: err},
		}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &model.FetchError{
			URL: feedURL,
			Err: fmt.Errorf("response body exceeds %d bytes", f.maxBodySize),
		}
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
