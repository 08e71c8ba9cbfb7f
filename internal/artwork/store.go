package artwork

import (
	"bytes"
	"context"
	"fmt"

	storage "github.com/supabase-community/storage-go"
)

// Store は複製した画像を保存し、公開URLを返す。
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// SupabaseStore はSupabase Storageのバケットに画像を保存する。
type SupabaseStore struct {
	client *storage.Client
	bucket string
}

// NewSupabaseStore はSupabaseStoreを生成する。
// baseURLはプロジェクトURL（例: https://xxxx.supabase.co）で、/storage/v1 は付与しない。
func NewSupabaseStore(baseURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		client: storage.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket: bucket,
	}
}

// Put は画像を同じキーに上書き保存し、公開URLを返す。
func (s *SupabaseStore) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	upsert := true
	opts := storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}

	if _, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("failed to upload %s/%s: %w", s.bucket, key, err)
	}

	return s.client.GetPublicUrl(s.bucket, key).SignedURL, nil
}

var _ Store = (*SupabaseStore)(nil)
