package artwork

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/castsite/internal/model"
)

// pngHeader はhttp.DetectContentTypeがimage/pngと判定する最小のバイト列。
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type mockGuard struct {
	validateErr error
}

func (g *mockGuard) ValidateURL(string) error { return g.validateErr }

func (g *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type fakeStore struct {
	mu          sync.Mutex
	keys        []string
	contentType string
	data        []byte
	err         error
}

func (s *fakeStore) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	s.contentType = contentType
	s.data = data
	return "https://cdn.example.com/" + key, nil
}

func newImageServer(t *testing.T, contentType string, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestMirror(store Store, guard *mockGuard) *Mirror {
	return NewMirror(guard, store, slog.New(slog.DiscardHandler))
}

func TestMirror_UploadsImage(t *testing.T) {
	srv := newImageServer(t, "image/jpeg; charset=binary", http.StatusOK, []byte("jpeg-bytes"))
	store := &fakeStore{}

	url, err := newTestMirror(store, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL+"/cover.jpg")
	if err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}

	if len(store.keys) != 1 {
		t.Fatalf("Put called %d times, want 1", len(store.keys))
	}
	key := store.keys[0]
	if !strings.HasPrefix(key, "podcasts/pod-1/cover-") || !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q", key)
	}
	if store.contentType != "image/jpeg" {
		t.Errorf("contentType = %q, want image/jpeg", store.contentType)
	}
	if string(store.data) != "jpeg-bytes" {
		t.Errorf("data = %q", store.data)
	}
	if url != "https://cdn.example.com/"+key {
		t.Errorf("url = %q", url)
	}
}

func TestMirror_SameImageSameKey(t *testing.T) {
	srv := newImageServer(t, "image/png", http.StatusOK, pngHeader)
	store := &fakeStore{}
	m := newTestMirror(store, &mockGuard{})

	first, _ := m.Mirror(context.Background(), "pod-1", srv.URL)
	second, _ := m.Mirror(context.Background(), "pod-1", srv.URL)

	if first == "" || first != second {
		t.Errorf("urls = %q / %q, want identical", first, second)
	}
}

func TestMirror_SniffsContentType(t *testing.T) {
	srv := newImageServer(t, "application/octet-stream", http.StatusOK, pngHeader)
	store := &fakeStore{}

	if _, err := newTestMirror(store, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL); err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}
	if store.contentType != "image/png" {
		t.Errorf("contentType = %q, want image/png", store.contentType)
	}
}

func TestMirror_RejectsNonImage(t *testing.T) {
	srv := newImageServer(t, "text/html", http.StatusOK, []byte("<html>not an image</html>"))
	store := &fakeStore{}

	_, err := newTestMirror(store, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL)

	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want FetchError", err)
	}
	if len(store.keys) != 0 {
		t.Error("non-image must not be stored")
	}
}

func TestMirror_RejectsNonRasterImage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{"svg", "image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)},
		{"svg with charset", "image/svg+xml; charset=utf-8", []byte(`<?xml version="1.0"?><svg></svg>`)},
		{"tiff", "image/tiff", []byte("II*\x00tiff-bytes")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newImageServer(t, tt.contentType, http.StatusOK, tt.body)
			store := &fakeStore{}

			_, err := newTestMirror(store, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL)

			var fetchErr *model.FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error = %v, want FetchError", err)
			}
			if len(store.keys) != 0 {
				t.Errorf("keys = %v, want nothing stored", store.keys)
			}
		})
	}
}

func TestMirror_HTTPStatusError(t *testing.T) {
	srv := newImageServer(t, "image/png", http.StatusNotFound, nil)

	_, err := newTestMirror(&fakeStore{}, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL)

	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound || fetchErr.Transient {
		t.Errorf("FetchError = %+v, want permanent 404", fetchErr)
	}
}

func TestMirror_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.CopyN(w, zeroReader{}, maxImageSize+10)
	}))
	defer srv.Close()

	_, err := newTestMirror(&fakeStore{}, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL)

	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want FetchError", err)
	}
}

func TestMirror_BlockedURL(t *testing.T) {
	guardErr := errors.New("blocked url")
	store := &fakeStore{}

	_, err := newTestMirror(store, &mockGuard{validateErr: guardErr}).Mirror(context.Background(), "pod-1", "http://169.254.169.254/latest")
	if !errors.Is(err, guardErr) {
		t.Fatalf("error = %v, want wrapped guard error", err)
	}
	if len(store.keys) != 0 {
		t.Error("blocked URL must not be stored")
	}
}

func TestMirror_StoreFailure(t *testing.T) {
	srv := newImageServer(t, "image/png", http.StatusOK, pngHeader)
	storeErr := errors.New("bucket not found")

	_, err := newTestMirror(&fakeStore{err: storeErr}, &mockGuard{}).Mirror(context.Background(), "pod-1", srv.URL)

	var se *model.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StorageError", err)
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrapped %v", err, storeErr)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":    ".jpg",
		"image/png":     ".png",
		"image/webp":    ".webp",
		"image/gif":     ".gif",
		"image/svg+xml": "",
		"image/tiff":    "",
	}
	for mimeType, want := range tests {
		if got := extensionFor(mimeType); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", mimeType, got, want)
		}
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
