package model

import (
	"errors"
	"fmt"
)

// ErrPodcastNotFound は指定されたポッドキャストが存在しないことを表す。
var ErrPodcastNotFound = errors.New("podcast not found")

// ErrDuplicatePodcast は同じRSS URLのポッドキャストが既に存在することを表す。
var ErrDuplicatePodcast = errors.New("podcast already registered")

// ErrChannelNotSet はYouTube同期に必要なチャンネルIDが指定も登録もされていないことを表す。
var ErrChannelNotSet = errors.New("youtube channel not set")

// ErrYouTubeDisabled はYouTube APIの認証情報が設定されていないことを表す。
var ErrYouTubeDisabled = errors.New("youtube integration is not configured")

// FetchError はフィードの取得に失敗したことを表す。
// 到達不能、タイムアウト、SSRFブロック、異常なHTTPステータスを含む。
type FetchError struct {
	URL        string
	StatusCode int  // HTTPレスポンスを受け取れなかった場合は0
	Transient  bool // タイムアウト、429、5xxなど再試行で回復し得る失敗
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed fetch failed: %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed fetch failed: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError はフィードのマークアップが不正であることを表す。
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed parse failed: %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ChannelNotFoundError はYouTubeチャンネルIDが解決できないことを表す。
type ChannelNotFoundError struct {
	ChannelID string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("youtube channel not found: %s", e.ChannelID)
}

// QuotaExceededError はYouTube APIのクォータ超過またはレート制限を表す。
type QuotaExceededError struct {
	Err error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("youtube quota exceeded: %v", e.Err)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// TransportError はリモート呼び出しの通信失敗を表す。タイムアウトもここに含める。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError は永続化層への書き込み失敗を表す。
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AuthorizationError は呼び出し元が対象ポッドキャストの所有者でないことを表す。
type AuthorizationError struct {
	PodcastID string
	UserID    string
}

func (e *AuthorizationError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("unauthenticated caller for podcast %s", e.PodcastID)
	}
	return fmt.Sprintf("user %s is not the owner of podcast %s", e.UserID, e.PodcastID)
}

// StageError はどのポッドキャストのどの段階で失敗したかをエラーに付与する。
type StageError struct {
	PodcastID string
	Stage     Stage
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("podcast %s: %s: %v", e.PodcastID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf はエラーに付与された段階を返す。付与されていない場合は空文字列。
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, youtube, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodePodcastNotFound  = "PODCAST_NOT_FOUND"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeChannelNotFound  = "CHANNEL_NOT_FOUND"
	ErrCodeChannelMissing   = "CHANNEL_NOT_SET"
	ErrCodeQuotaExceeded    = "YOUTUBE_QUOTA_EXCEEDED"
	ErrCodeYouTubeFailed    = "YOUTUBE_FAILED"
	ErrCodeDuplicatePodcast = "DUPLICATE_PODCAST"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は所有者以外による操作のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このポッドキャストを操作する権限がありません。",
		Category: "auth",
		Action:   "ポッドキャストの所有者アカウントでログインしてください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewPodcastNotFoundError はポッドキャスト未検出エラーを生成する。
func NewPodcastNotFoundError(podcastID string) *APIError {
	return &APIError{
		Code:     ErrCodePodcastNotFound,
		Message:  fmt.Sprintf("指定されたポッドキャストが見つかりません: %s", podcastID),
		Category: "feed",
		Action:   "ポッドキャストIDを確認してください。",
	}
}

// NewFetchFailedError はフィード取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("RSSフィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "RSSフィードのURLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はフィード解析失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "RSSフィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewChannelNotFoundError はYouTubeチャンネル未検出エラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("YouTubeチャンネルが見つかりません: %s", channelID),
		Category: "youtube",
		Action:   "チャンネルID（UCで始まるID）または@ハンドルを確認してください。",
	}
}

// NewChannelMissingError はYouTubeチャンネルが未設定の場合のエラーを生成する。
func NewChannelMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelMissing,
		Message:  "YouTubeチャンネルが設定されていません。",
		Category: "youtube",
		Action:   "チャンネルIDを指定するか、ポッドキャストの設定でチャンネルを登録してください。",
	}
}

// NewQuotaExceededError はYouTube APIクォータ超過エラーを生成する。
func NewQuotaExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExceeded,
		Message:  "YouTube APIの利用上限に達しました。",
		Category: "youtube",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewYouTubeFailedError はYouTube API呼び出し失敗エラーを生成する。
func NewYouTubeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeYouTubeFailed,
		Message:  "YouTubeからアップロード一覧を取得できませんでした。",
		Category: "youtube",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDuplicatePodcastError は同じRSSフィードが既に登録済みの場合のエラーを生成する。
func NewDuplicatePodcastError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePodcast,
		Message:  "このRSSフィードは既に登録されています。",
		Category: "feed",
		Action:   "ダッシュボードから登録済みのポッドキャストを確認してください。",
	}
}
