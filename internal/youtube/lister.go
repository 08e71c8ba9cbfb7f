// Package youtube はYouTube Data API v3を使ってチャンネルのアップロード動画一覧を取得する。
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/hitoshi/castsite/internal/model"
)

const (
	// DefaultMaxUploads は取得するアップロード数の既定値。
	DefaultMaxUploads = 200
	// pageSize はplaylistItems.listの1ページあたりの最大件数（APIの上限）。
	pageSize = 50

	defaultTimeout  = 20 * time.Second
	defaultInterval = 200 * time.Millisecond
)

// Config はListerの構築に必要な設定。
// 認証情報やHTTPクライアントはプロセス環境から暗黙に読まず、ここで明示的に渡す。
type Config struct {
	APIKey     string
	HTTPClient *http.Client  // nilの場合はTimeoutを設定した新しいクライアント
	Endpoint   string        // 空の場合は公開エンドポイント
	Timeout    time.Duration // ListUploads 1回あたりの上限
	Interval   time.Duration // ページ取得の最小間隔
}

// Lister はチャンネルのアップロード動画を新しい順に取得する。
type Lister struct {
	svc     *yt.Service
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewLister はListerを生成する。
func NewLister(ctx context.Context, cfg Config, logger *slog.Logger) (*Lister, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	// WithHTTPClientを指定するとWithAPIKeyは無視されるため、キーはTransportで付与する
	client := &http.Client{
		Timeout:   base.Timeout,
		Transport: &transport.APIKey{Key: cfg.APIKey, Transport: rt},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("YouTubeクライアントの初期化に失敗しました: %w", err)
	}

	return &Lister{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// ListUploads はチャンネルの最新アップロードを最大limit件、新しい順に返す。
// channelIDは "UC..." 形式のIDまたは "@handle"。
// 失敗時は常にnilスライスとエラーを返し、「0件」と「取得失敗」を区別できるようにする。
func (l *Lister) ListUploads(ctx context.Context, channelID string, limit int) ([]model.Upload, error) {
	if limit <= 0 {
		limit = DefaultMaxUploads
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &model.ChannelNotFoundError{ChannelID: channelID}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	playlistID, err := l.uploadsPlaylist(ctx, channelID)
	if err != nil {
		return nil, err
	}

	uploads := make([]model.Upload, 0, min(limit, pageSize))
	pageToken := ""

	for len(uploads) < limit {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, &model.TransportError{Op: "youtube playlistItems.list", Err: err}
		}

		call := l.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(int64(min(pageSize, limit-len(uploads)))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			// アップロードが1件もないチャンネルではuploadsプレイリストが404になる
			if isStatus(err, http.StatusNotFound) && pageToken == "" {
				return []model.Upload{}, nil
			}
			return nil, classify("youtube playlistItems.list", channelID, err)
		}

		for _, item := range resp.Items {
			if up, ok := toUpload(item); ok {
				uploads = append(uploads, up)
				if len(uploads) == limit {
					break
				}
			}
		}

		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	l.logger.Debug("アップロード一覧を取得しました",
		slog.String("channel_id", channelID),
		slog.Int("uploads", len(uploads)),
	)

	return uploads, nil
}

// uploadsPlaylist はチャンネルのアップロード用プレイリストIDを解決する。
func (l *Lister) uploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", &model.TransportError{Op: "youtube channels.list", Err: err}
	}

	call := l.svc.Channels.List([]string{"contentDetails"}).Context(ctx)
	if strings.HasPrefix(channelID, "@") {
		call = call.ForHandle(channelID)
	} else {
		call = call.Id(channelID)
	}

	resp, err := call.Do()
	if err != nil {
		return "", classify("youtube channels.list", channelID, err)
	}

	for _, ch := range resp.Items {
		if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil &&
			ch.ContentDetails.RelatedPlaylists.Uploads != "" {
			return ch.ContentDetails.RelatedPlaylists.Uploads, nil
		}
	}

	return "", &model.ChannelNotFoundError{ChannelID: channelID}
}

func toUpload(item *yt.PlaylistItem) (model.Upload, bool) {
	if item == nil || item.Snippet == nil {
		return model.Upload{}, false
	}

	var videoID, published string
	if item.ContentDetails != nil {
		videoID = item.ContentDetails.VideoId
		published = item.ContentDetails.VideoPublishedAt
	}
	if videoID == "" && item.Snippet.ResourceId != nil {
		videoID = item.Snippet.ResourceId.VideoId
	}
	if videoID == "" {
		return model.Upload{}, false
	}
	if published == "" {
		published = item.Snippet.PublishedAt
	}

	up := model.Upload{
		VideoID:     videoID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
	}
	if t, err := time.Parse(time.RFC3339, published); err == nil {
		t = t.UTC()
		up.PublishedAt = &t
	}
	return up, true
}

// classify はAPIエラーをドメインのエラーに変換する。
func classify(op, channelID string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return &model.QuotaExceededError{Err: err}
		case gerr.Code == http.StatusForbidden && hasReason(gerr, "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded"):
			return &model.QuotaExceededError{Err: err}
		case gerr.Code == http.StatusNotFound:
			return &model.ChannelNotFoundError{ChannelID: channelID}
		}
	}
	return &model.TransportError{Op: op, Err: err}
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
