package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresSessionRepo_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresSessionRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id, expires_at, created_at\s+FROM sessions`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
			AddRow("sess-1", "user-1", now.Add(time.Hour), now))

	got, err := repo.FindByID(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got == nil || got.UserID != "user-1" {
		t.Errorf("got %+v, want user-1", got)
	}
}

// 期限切れのセッションはクエリ条件で除外されnilになる。
func TestPostgresSessionRepo_FindByID_Expired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresSessionRepo(db)

	mock.ExpectQuery(`expires_at > now\(\)`).
		WithArgs("old").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.FindByID(context.Background(), "old")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
