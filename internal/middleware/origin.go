package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/castsite/internal/model"
)

// NewOriginCheckMiddleware はCookie認証の状態変更リクエストに対し、
// OriginまたはRefererが許可オリジンと一致することを検証するミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）とBearer認証のリクエストは検証しない。
func NewOriginCheckMiddleware(allowedOrigin string, logger *slog.Logger) func(next http.Handler) http.Handler {
	allowed := normalizeOrigin(allowedOrigin)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || !usesCookieSession(r) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = r.Header.Get("Referer")
			}

			if origin == "" || normalizeOrigin(origin) != allowed {
				logger.Warn("オリジン検証に失敗しました",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// normalizeOrigin はURLから scheme://host 部分を小文字で取り出す。
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
