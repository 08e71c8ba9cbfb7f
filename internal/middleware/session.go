// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/castsite/internal/auth"
	"github.com/hitoshi/castsite/internal/model"
)

const sessionCookieName = "session_id"

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はセッションIDから呼び出し元ユーザーを特定するミドルウェアを返す。
// セッションIDはHTTP Only Cookie、またはAuthorization: Bearer ヘッダーから読み取る。
// 有効なセッションのユーザーIDをリクエストコンテキストに注入し、それ以外は401を返す。
func NewSessionMiddleware(sessions SessionFinder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := sessions.FindByID(r.Context(), sessionID)
			if err != nil {
				logger.Error("セッションの検索に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := auth.WithUserID(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// usesCookieSession はリクエストがCookieのセッションで認証されているかを返す。
// Bearerヘッダーを使うクライアントはブラウザから自動送信されないため、オリジン検証の対象外にする。
func usesCookieSession(r *http.Request) bool {
	return !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}
