package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/castsite/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// WriteError は同期処理のドメインエラーをHTTPステータスと統一エラーに変換して書き込む。
// 対応表にないエラーは500として扱い、詳細はログのみに記録する。
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, apiErr := StatusFor(err)
	if apiErr == nil {
		logger.Error("リクエストの処理に失敗しました",
			slog.String("stage", string(model.StageOf(err))),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return
	}
	logger.Warn("リクエストを拒否しました",
		slog.Int("status", status),
		slog.String("code", apiErr.Code),
		slog.String("stage", string(model.StageOf(err))),
		slog.String("error", err.Error()),
	)
	WriteErrorResponse(w, status, apiErr)
}

// StatusFor はドメインエラーに対応するHTTPステータスとAPIErrorを返す。
// 対応するものがない場合はapiErrがnilになる。
func StatusFor(err error) (int, *model.APIError) {
	var (
		apiErr     *model.APIError
		authErr    *model.AuthorizationError
		fetchErr   *model.FetchError
		parseErr   *model.ParseError
		quotaErr   *model.QuotaExceededError
		channelErr *model.ChannelNotFoundError
	)

	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadRequest, apiErr
	case errors.As(err, &authErr):
		if authErr.UserID == "" {
			return http.StatusUnauthorized, model.NewUnauthorizedError()
		}
		return http.StatusForbidden, model.NewForbiddenError()
	case errors.Is(err, model.ErrPodcastNotFound):
		var se *model.StageError
		id := ""
		if errors.As(err, &se) {
			id = se.PodcastID
		}
		return http.StatusNotFound, model.NewPodcastNotFoundError(id)
	case errors.Is(err, model.ErrDuplicatePodcast):
		return http.StatusConflict, model.NewDuplicatePodcastError()
	case errors.Is(err, model.ErrChannelNotSet):
		return http.StatusBadRequest, model.NewChannelMissingError()
	case errors.Is(err, model.ErrYouTubeDisabled):
		return http.StatusServiceUnavailable, model.NewYouTubeFailedError()
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, model.NewParseFailedError()
	case errors.As(err, &fetchErr):
		reason := "接続できませんでした"
		if fetchErr.StatusCode != 0 {
			reason = http.StatusText(fetchErr.StatusCode)
		}
		return http.StatusBadGateway, model.NewFetchFailedError(reason)
	case errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, model.NewQuotaExceededError()
	case errors.As(err, &channelErr):
		return http.StatusNotFound, model.NewChannelNotFoundError(channelErr.ChannelID)
	default:
		var te *model.TransportError
		if errors.As(err, &te) && model.StageOf(err) == model.StageListUploads {
			return http.StatusBadGateway, model.NewYouTubeFailedError()
		}
		return http.StatusInternalServerError, nil
	}
}
