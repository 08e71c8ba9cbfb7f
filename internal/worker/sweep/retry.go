package sweep

import (
	"errors"
	"time"

	"github.com/hitoshi/castsite/internal/model"
)

// RetryPolicy はスイープ中に一時的な失敗が起きたポッドキャストの再試行方針。
// MaxAttemptsが1以下の場合は再試行しない。
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NoRetry は再試行しない方針。
var NoRetry = RetryPolicy{MaxAttempts: 1}

// CalculateBackoff は再試行回数に基づいて指数バックオフ遅延を計算する。
// 初回はInitialBackoff、2倍ずつ増加し、MaxBackoffで頭打ちになる。
func (p RetryPolicy) CalculateBackoff(retry int) time.Duration {
	delay := p.InitialBackoff
	if delay <= 0 {
		return 0
	}
	for i := 0; i < retry; i++ {
		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return delay
}

// IsRetryable はエラーが再試行で回復し得るかを判定する。
// タイムアウトや429・5xxによるフィード取得失敗と通信エラーが対象。
// 認可失敗、解析失敗、クォータ超過は再試行しない。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var authErr *model.AuthorizationError
	if errors.As(err, &authErr) {
		return false
	}
	var quotaErr *model.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return false
	}
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient
	}
	var transportErr *model.TransportError
	return errors.As(err, &transportErr)
}
