// Package auth はポッドキャストに対する操作権限の判定を提供する。
// ログインやセッション発行は外部の認証基盤が担い、ここでは呼び出し元の識別と所有者判定のみ行う。
package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/castsite/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey       = contextKey("user_id")
	systemCallerContextKey = contextKey("system_caller")
)

// WithUserID はコンテキストに呼び出し元のユーザーIDを注入する。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}

// WithSystemCaller はスイープやCLIなど、所有者判定を省略する内部呼び出しであることを示す。
func WithSystemCaller(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemCallerContextKey, true)
}

// IsSystemCaller は内部呼び出しかどうかを返す。
func IsSystemCaller(ctx context.Context) bool {
	v, _ := ctx.Value(systemCallerContextKey).(bool)
	return v
}

// PodcastFinder は所有者判定に必要なリポジトリの部分集合。
type PodcastFinder interface {
	FindByID(ctx context.Context, id string) (*model.Podcast, error)
}

// OwnerAuthorizer は呼び出し元がポッドキャストの所有者かどうかを判定する。
type OwnerAuthorizer struct {
	podcasts PodcastFinder
}

// NewOwnerAuthorizer はOwnerAuthorizerを生成する。
func NewOwnerAuthorizer(podcasts PodcastFinder) *OwnerAuthorizer {
	return &OwnerAuthorizer{podcasts: podcasts}
}

// Authorize は呼び出し元がpodcastIDの所有者であればnilを返す。
// 内部呼び出しは常に許可する。未認証または所有者以外は*model.AuthorizationErrorを返す。
// ポッドキャストが存在しない場合はmodel.ErrPodcastNotFoundを返す。
func (a *OwnerAuthorizer) Authorize(ctx context.Context, podcastID string) error {
	if IsSystemCaller(ctx) {
		return nil
	}

	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return &model.AuthorizationError{PodcastID: podcastID}
	}

	podcast, err := a.podcasts.FindByID(ctx, podcastID)
	if err != nil {
		return fmt.Errorf("failed to find podcast: %w", err)
	}
	if podcast == nil {
		return model.ErrPodcastNotFound
	}

	if podcast.OwnerID != userID {
		return &model.AuthorizationError{PodcastID: podcastID, UserID: userID}
	}
	return nil
}
