// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/castsite/internal/auth"
	"github.com/hitoshi/castsite/internal/middleware"
	"github.com/hitoshi/castsite/internal/model"
)

// maxRequestBody はリクエストボディの上限サイズ。
const maxRequestBody = 64 << 10

// SyncServiceInterface はポッドキャストハンドラーが必要とする同期サービスのインターフェース。
type SyncServiceInterface interface {
	// SyncPodcast はRSS同期と、チャンネルが分かっていればYouTube同期を実行する。
	SyncPodcast(ctx context.Context, podcastID string) (*model.PodcastSyncSummary, error)
	// SyncFeed はRSS同期のみを実行する。
	SyncFeed(ctx context.Context, podcastID string) (*model.FeedSyncSummary, error)
	// SyncYouTube はYouTube同期のみを実行する。channelIDが空なら登録済みのチャンネルを使う。
	SyncYouTube(ctx context.Context, podcastID, channelID string) (*model.YouTubeSyncSummary, error)
	// ImportPodcast はRSSフィードから新しいポッドキャストを作成する。
	ImportPodcast(ctx context.Context, ownerID, rssURL string) (*model.Podcast, *model.FeedSyncSummary, error)
}

// PodcastHandler はポッドキャストの取り込みと同期のHTTPハンドラー。
type PodcastHandler struct {
	service SyncServiceInterface
	logger  *slog.Logger
}

// NewPodcastHandler はPodcastHandlerを生成する。
func NewPodcastHandler(service SyncServiceInterface, logger *slog.Logger) *PodcastHandler {
	return &PodcastHandler{
		service: service,
		logger:  logger,
	}
}

// importPodcastRequest はポッドキャスト取り込みリクエストのボディ。
type importPodcastRequest struct {
	RSSURL string `json:"rss_url"`
}

// syncYouTubeRequest はYouTube同期リクエストのボディ。ボディ自体を省略してもよい。
type syncYouTubeRequest struct {
	ChannelID string `json:"channel_id"`
}

// podcastResponse はポッドキャスト情報のAPIレスポンス。
type podcastResponse struct {
	ID               string `json:"id"`
	RSSURL           string `json:"rss_url"`
	YouTubeChannelID string `json:"youtube_channel_id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url"`
}

// importPodcastResponse は取り込み結果のAPIレスポンス。
type importPodcastResponse struct {
	Podcast podcastResponse        `json:"podcast"`
	Sync    *model.FeedSyncSummary `json:"sync"`
}

// ImportPodcast はRSSフィードからポッドキャストを取り込む。
// POST /api/podcasts
func (h *PodcastHandler) ImportPodcast(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req importPodcastRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	rssURL := strings.TrimSpace(req.RSSURL)
	if rssURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}
	if u, err := url.Parse(rssURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("http(s)のURLではありません"))
		return
	}

	podcast, summary, err := h.service.ImportPodcast(r.Context(), userID, rssURL)
	if err != nil {
		middleware.WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, importPodcastResponse{
		Podcast: toPodcastResponse(podcast),
		Sync:    summary,
	})
}

// SyncPodcast はRSS同期とYouTube同期をまとめて実行する。
// POST /api/podcasts/{id}/sync
func (h *PodcastHandler) SyncPodcast(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.SyncPodcast(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SyncFeed はRSS同期のみを実行する。
// POST /api/podcasts/{id}/sync/rss
func (h *PodcastHandler) SyncFeed(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.SyncFeed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SyncYouTube はYouTube同期のみを実行する。
// POST /api/podcasts/{id}/sync/youtube
func (h *PodcastHandler) SyncYouTube(w http.ResponseWriter, r *http.Request) {
	var req syncYouTubeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	summary, err := h.service.SyncYouTube(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.ChannelID))
	if err != nil {
		middleware.WriteError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

func toPodcastResponse(p *model.Podcast) podcastResponse {
	if p == nil {
		return podcastResponse{}
	}
	imageURL := p.ImageURL
	if p.MirroredImageURL != "" {
		imageURL = p.MirroredImageURL
	}
	return podcastResponse{
		ID:               p.ID,
		RSSURL:           p.RSSURL,
		YouTubeChannelID: p.YouTubeChannelID,
		Title:            p.Title,
		Description:      p.Description,
		ImageURL:         imageURL,
	}
}
