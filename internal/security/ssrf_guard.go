// Package security はフィード取得とエピソード本文に関わる安全対策を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLGuard は外部URLへのアクセスをSSRFから保護する。
// フィード取得とカバー画像の複製で共用する。
type URLGuard interface {
	// NewSafeClient はプライベートネットワークへの接続を拒否するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は接続前にURLを静的に検証する。
	ValidateURL(rawURL string) error
}

// ErrBlockedURL はURLがSSRF対策により拒否されたことを表す。
var ErrBlockedURL = errors.New("blocked url")

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は静的検証で拒否するアドレス範囲。
// 接続時の検証（DNS解決後）はsafeurlのDialerが行う。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var blockedHostSuffixes = []string{"localhost", ".local", ".internal"}

type ssrfGuard struct {
	ports []int
}

// NewSSRFGuard はsafeurlを使用するURLGuardを生成する。
// 許可ポートを指定しない場合は80と443のみ許可する。
func NewSSRFGuard(ports ...int) URLGuard {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	return &ssrfGuard{ports: ports}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム、ホスト名、IPリテラルを検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrBlockedURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("%w: address %s", ErrBlockedURL, addr)
			}
		}
		return nil
	}

	for _, suffix := range blockedHostSuffixes {
		if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
			return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
		}
	}

	return nil
}
