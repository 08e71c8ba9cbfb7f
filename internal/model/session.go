package model

import "time"

// Session はダッシュボード利用者のログインセッションを表す。
// セッションの発行は外部の認証基盤が行い、本アプリケーションは参照のみ行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
