package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/castsite/internal/model"
)

// UPSERT文がyoutube_video_idに触れないことを検証する。
// フィード同期で動画との対応付けが消えないための制約。
func TestPostgresEpisodeRepo_UpsertByGUID_NeverWritesVideoID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresEpisodeRepo(db)

	mock.ExpectQuery(`INSERT INTO episodes .+ ON CONFLICT \(podcast_id, guid\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	ep := &model.Episode{
		ID:        "new-id",
		PodcastID: "pod-1",
		GUID:      "guid-1",
		Title:     "Episode 1",
		UpdatedAt: time.Now(),
	}
	if err := repo.UpsertByGUID(context.Background(), ep); err != nil {
		t.Fatalf("UpsertByGUID returned error: %v", err)
	}

	if ep.ID != "existing-id" {
		t.Errorf("既存行のIDが返されるべき: got %q", ep.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("未消化のexpectationがある: %v", err)
	}
}

func TestUpsertQuery_DoesNotMentionVideoID(t *testing.T) {
	// youtube_video_idを含むクエリだけを受け付けるモックに対して失敗すれば、
	// UPSERT文にそのカラムが現れていないことになる。
	db, mock := newMockDB(t)
	repo := NewPostgresEpisodeRepo(db)

	mock.ExpectQuery(`youtube_video_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("x"))

	err := repo.UpsertByGUID(context.Background(), &model.Episode{ID: "e", PodcastID: "p", GUID: "g"})
	if err == nil || !strings.Contains(err.Error(), "エピソードの保存に失敗しました") {
		t.Errorf("youtube_video_idを含むクエリが発行されてはならない: err = %v", err)
	}
}

func TestPostgresEpisodeRepo_UpsertByGUID_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresEpisodeRepo(db)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnError(dbErr)

	err := repo.UpsertByGUID(context.Background(), &model.Episode{ID: "e", PodcastID: "p", GUID: "g"})
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
}

func TestPostgresEpisodeRepo_UpdateYouTubeVideoID_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresEpisodeRepo(db)

	mock.ExpectExec(`UPDATE episodes SET youtube_video_id`).
		WithArgs("gone", "vid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateYouTubeVideoID(context.Background(), "gone", "vid"); err == nil {
		t.Error("対象行が無い場合はエラーを返すべき")
	}
}

func TestPostgresEpisodeRepo_ListRefsByPodcast(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresEpisodeRepo(db)

	mock.ExpectQuery(`SELECT id, title FROM episodes\s+WHERE podcast_id = \$1\s+ORDER BY published_at DESC`).
		WithArgs("pod-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow("ep-2", "Newer").
			AddRow("ep-1", "Older"))

	got, err := repo.ListRefsByPodcast(context.Background(), "pod-1")
	if err != nil {
		t.Fatalf("ListRefsByPodcast returned error: %v", err)
	}
	want := []model.EpisodeRef{{ID: "ep-2", Title: "Newer"}, {ID: "ep-1", Title: "Older"}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
