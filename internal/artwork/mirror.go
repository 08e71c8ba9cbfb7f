// Package artwork はポッドキャストのカバー画像をオブジェクトストレージに複製する。
// 配信元のホスティングが消えても公開サイトの画像が表示され続けるようにする。
package artwork

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/castsite/internal/model"
)

const (
	// maxImageSize はカバー画像の最大サイズ（5MB）。
	maxImageSize = 5 * 1024 * 1024
	// imageTimeout はカバー画像取得のタイムアウト。
	imageTimeout = 10 * time.Second
	userAgent    = "castsite/1.0 (+podcast site builder)"
)

// URLGuard はSSRF検証のインターフェース。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Mirror はカバー画像をダウンロードしてStoreに保存する。
type Mirror struct {
	guard  URLGuard
	store  Store
	logger *slog.Logger
}

// NewMirror はMirrorの新しいインスタンスを生成する。
func NewMirror(guard URLGuard, store Store, logger *slog.Logger) *Mirror {
	return &Mirror{guard: guard, store: store, logger: logger}
}

// Mirror はimageURLの画像を複製し、公開URLを返す。
// キーに内容のハッシュを含めるため、同じ画像は同じURLになる。
// 取得失敗は *model.FetchError、保存失敗は *model.StorageError を返す。
func (m *Mirror) Mirror(ctx context.Context, podcastID, imageURL string) (string, error) {
	data, mimeType, err := m.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	key := objectKey(podcastID, data, mimeType)
	publicURL, err := m.store.Put(ctx, key, mimeType, data)
	if err != nil {
		return "", &model.StorageError{Op: "put artwork", Key: key, Err: err}
	}

	m.logger.Debug("カバー画像を複製しました",
		slog.String("podcast_id", podcastID),
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	return publicURL, nil
}

func (m *Mirror) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	if err := m.guard.ValidateURL(imageURL); err != nil {
		return nil, "", &model.FetchError{URL: imageURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", &model.FetchError{URL: imageURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.guard.NewSafeClient(imageTimeout).Do(req)
	if err != nil {
		return nil, "", &model.FetchError{
			URL:       imageURL,
			Transient: true,
			Err:       &model.TransportError{Op: "download artwork", Err: err},
		}
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &model.FetchError{
			URL:        imageURL,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", &model.FetchError{URL: imageURL, Transient: true, Err: err}
	}
	if int64(len(body)) > maxImageSize {
		return nil, "", &model.FetchError{URL: imageURL, Err: fmt.Errorf("image exceeds %d bytes", maxImageSize)}
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isRasterImage(mimeType) {
		mimeType = extractMimeType(http.DetectContentType(body))
	}
	if !isRasterImage(mimeType) {
		return nil, "", &model.FetchError{URL: imageURL, Err: fmt.Errorf("unexpected content type %q", mimeType)}
	}

	return body, mimeType, nil
}

// objectKey は podcasts/<id>/cover-<hash>.<ext> 形式のキーを返す。
func objectKey(podcastID string, data []byte, mimeType string) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("podcasts/%s/cover-%s%s", podcastID, hex.EncodeToString(sum[:6]), extensionFor(mimeType))
}

// rasterExtensions は再ホストを許可する画像形式と拡張子の対応。
// SVGはスクリプトを含み得るため対象外。
var rasterExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

func isRasterImage(mimeType string) bool {
	_, ok := rasterExtensions[mimeType]
	return ok
}

func extensionFor(mimeType string) string {
	return rasterExtensions[mimeType]
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}
