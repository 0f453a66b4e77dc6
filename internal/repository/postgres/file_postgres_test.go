package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"filebox/internal/model"
	"filebox/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestFilePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	f := &model.File{
		ID:           "test-uuid",
		OriginalName: "report.pdf",
		StoragePath:  "files/test-uuid.pdf",
		Size:         123,
		MimeType:     "application/pdf",
		UploadedAt:   now,
	}

	rows := sqlmock.NewRows([]string{"id", "original_name", "storage_path", "size", "mime_type", "uploaded_at"}).
		AddRow(f.ID, f.OriginalName, f.StoragePath, f.Size, f.MimeType, f.UploadedAt)

	mock.ExpectQuery("INSERT INTO files").
		WithArgs(f.ID, f.OriginalName, f.StoragePath, f.Size, f.MimeType, f.UploadedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, f)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, f.ID, result.ID)
	assert.Equal(t, f.StoragePath, result.StoragePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "original_name", "storage_path", "size", "mime_type", "uploaded_at"}).
			AddRow("test-id", "photo.png", "files/test-id.png", 100, "image/png", time.Now())

		mock.ExpectQuery("SELECT (.+) FROM files WHERE id = ?").
			WithArgs("test-id").
			WillReturnRows(rows)

		f, err := repo.FindByID(ctx, "test-id")

		assert.NoError(t, err)
		assert.NotNil(t, f)
		assert.Equal(t, "test-id", f.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		f, err := repo.FindByID(ctx, "missing")

		assert.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, f)
	})
}

func TestFilePostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM files").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		rows := sqlmock.NewRows([]string{"id", "original_name", "storage_path", "size", "mime_type", "uploaded_at"}).
			AddRow("test-id", "photo.png", "files/test-id.png", 100, "image/png", time.Now())

		mock.ExpectQuery("SELECT (.+) FROM files ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})
}

func TestFilePostgres_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM files").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		total, err := repo.Count(ctx)

		assert.NoError(t, err)
		assert.Equal(t, int64(42), total)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM files").
			WillReturnError(errors.New("connection reset"))

		total, err := repo.Count(ctx)

		assert.Error(t, err)
		assert.Equal(t, int64(0), total)
	})
}
