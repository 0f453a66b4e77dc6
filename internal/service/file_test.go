package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"filebox/internal/model"
	"filebox/internal/repository"
	repoMocks "filebox/internal/repository/mocks"
	"filebox/internal/storage"
	storeMocks "filebox/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStorageExt(t *testing.T) {
	tests := []struct {
		name         string
		originalName string
		mimeType     string
		want         string
	}{
		{"suffix wins over mime", "photo.png", "application/pdf", ".png"},
		{"mime fallback", "report", "application/pdf", ".pdf"},
		{"last segment only", "archive.tar.gz", "", ".gz"},
		{"unknown mime, no suffix", "blob", "application/x-thing", ""},
		{"trailing dot falls back to mime", "file.", "text/plain", ".txt"},
		{"text javascript", "script", "text/javascript", ".js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storageExt(tt.originalName, tt.mimeType))
		})
	}
}

func TestFileService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      UploadInput
		setupMocks func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository)
		wantErr    error
		wantErrMsg string
		checkRes   func(t *testing.T, res *UploadResult)
	}{
		{
			name: "happy path with name suffix",
			input: UploadInput{
				OriginalName: "hello.txt",
				Data:         []byte("hello, filebox"),
				MimeType:     "text/plain",
				DeclaredSize: 14,
			},
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "files/") && strings.HasSuffix(key, ".txt")
				}), mock.Anything, storage.PutObjectOptions{
					Size:        14,
					ContentType: "text/plain",
					Metadata:    map[string]string{"original-filename": "hello.txt"},
				}).Return(storage.ObjectInfo{Size: 14}, nil)

				mRepo.On("Create", ctx, mock.MatchedBy(func(f *model.File) bool {
					return f.ID != "" && f.StoragePath == "files/"+f.ID+".txt" &&
						f.Size == 14 && f.OriginalName == "hello.txt"
				})).Return(func(ctx context.Context, f *model.File) *model.File {
					return f
				}, nil)
			},
			checkRes: func(t *testing.T, res *UploadResult) {
				assert.NotEmpty(t, res.ID)
				assert.Equal(t, "/file/"+res.ID, res.PublicLink)
				assert.Equal(t, "hello.txt", res.OriginalName)
				assert.Equal(t, int64(14), res.Size)
				assert.False(t, res.UploadedAt.IsZero())
			},
		},
		{
			name: "extension inferred from mime when name has none",
			input: UploadInput{
				OriginalName: "report",
				Data:         []byte("%PDF-"),
				MimeType:     "application/pdf",
				DeclaredSize: 5,
			},
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasSuffix(key, ".pdf")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{Size: 5}, nil)
				mRepo.On("Create", ctx, mock.MatchedBy(func(f *model.File) bool {
					return strings.HasSuffix(f.StoragePath, ".pdf")
				})).Return(func(ctx context.Context, f *model.File) *model.File {
					return f
				}, nil)
			},
		},
		{
			name: "validation - empty name",
			input: UploadInput{
				OriginalName: "",
				Data:         []byte("x"),
				DeclaredSize: 1,
			},
			wantErr: ErrNameRequired,
		},
		{
			name: "validation - whitespace name",
			input: UploadInput{
				OriginalName: "   ",
				Data:         []byte("x"),
				DeclaredSize: 1,
			},
			wantErr: ErrNameRequired,
		},
		{
			name: "validation - zero declared size",
			input: UploadInput{
				OriginalName: "a.txt",
				Data:         nil,
				DeclaredSize: 0,
			},
			wantErr: ErrSizeInvalid,
		},
		{
			name: "validation - over limit",
			input: UploadInput{
				OriginalName: "big.bin",
				Data:         []byte("x"),
				DeclaredSize: MaxUploadSize + 1,
			},
			wantErr: ErrSizeInvalid,
		},
		{
			name: "size mismatch before any side effect",
			input: UploadInput{
				OriginalName: "a.txt",
				Data:         []byte("abc"),
				MimeType:     "text/plain",
				DeclaredSize: 4,
			},
			wantErr: ErrSizeMismatch,
		},
		{
			name: "storage error",
			input: UploadInput{
				OriginalName: "a.txt",
				Data:         []byte("hello"),
				DeclaredSize: 5,
			},
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("disk full"))
			},
			wantErrMsg: "upload to storage: disk full",
		},
		{
			name: "repository error with successful rollback",
			input: UploadInput{
				OriginalName: "a.txt",
				Data:         []byte("hello"),
				DeclaredSize: 5,
			},
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name: "repository error with failed rollback",
			input: UploadInput{
				OriginalName: "a.txt",
				Data:         []byte("hello"),
				DeclaredSize: 5,
			},
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(mStore, mRepo)

			if tt.setupMocks != nil {
				tt.setupMocks(mStore, mRepo)
			}

			res, err := svc.Upload(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, res)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}

			// Validation failures must not touch storage or the catalog.
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestFileService_GetContent(t *testing.T) {
	ctx := context.Background()
	content := []byte("file bytes here")

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository)
		wantErr    error
		checkRes   func(t *testing.T, res *FileDownload)
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.File{
					ID:           "valid-id",
					OriginalName: "notes.txt",
					StoragePath:  "files/valid-id.txt",
					Size:         int64(len(content)),
					MimeType:     "text/plain",
				}, nil)
				mStore.On("Get", ctx, "files/valid-id.txt").
					Return(io.NopCloser(bytes.NewReader(content)), storage.ObjectInfo{Size: int64(len(content))}, nil)
			},
			checkRes: func(t *testing.T, res *FileDownload) {
				assert.Equal(t, content, res.Data)
				assert.Equal(t, "notes.txt", res.OriginalName)
				assert.Equal(t, int64(len(content)), res.Size)
				assert.Equal(t, "text/plain", res.MimeType)
			},
		},
		{
			name:    "validation - empty id",
			id:      "",
			wantErr: ErrIDRequired,
		},
		{
			name: "row absent",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "blob removed out of band",
			id:   "diverged-id",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "diverged-id").Return(&model.File{
					ID:          "diverged-id",
					StoragePath: "files/diverged-id.bin",
				}, nil)
				mStore.On("Get", ctx, "files/diverged-id.bin").
					Return(nil, storage.ObjectInfo{}, storage.ErrNotExist)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "storage read error is not swallowed",
			id:   "broken-id",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "broken-id").Return(&model.File{
					ID:          "broken-id",
					StoragePath: "files/broken-id.bin",
				}, nil)
				mStore.On("Get", ctx, "files/broken-id.bin").
					Return(nil, storage.ObjectInfo{}, errors.New("io timeout"))
			},
			wantErr: errors.New("read from storage: io timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(mStore, mRepo)

			if tt.setupMocks != nil {
				tt.setupMocks(mStore, mRepo)
			}

			res, err := svc.GetContent(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
				assert.Nil(t, res)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, res)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestFileService_GetMetadata(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mRepo *repoMocks.MockFileRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.File{ID: "valid-id"}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			id:   "missing-id",
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "generic repository error",
			id:   "error-id",
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "error-id").Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(nil, mRepo)

			tt.setupMocks(mRepo)

			f, err := svc.GetMetadata(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, f)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, f)
				assert.Equal(t, tt.id, f.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestFileService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockFileRepository)
		mRepo.On("Count", ctx).Return(int64(7), nil)
		svc := NewFileService(nil, mRepo)

		stats, err := svc.Stats(ctx)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), stats.TotalFiles)
		mRepo.AssertExpectations(t)
	})

	t.Run("stable across repeated calls", func(t *testing.T) {
		mRepo := new(repoMocks.MockFileRepository)
		mRepo.On("Count", ctx).Return(int64(3), nil).Times(2)
		svc := NewFileService(nil, mRepo)

		first, err := svc.Stats(ctx)
		require.NoError(t, err)
		second, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.TotalFiles, second.TotalFiles)
		mRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mRepo := new(repoMocks.MockFileRepository)
		mRepo.On("Count", ctx).Return(int64(0), errors.New("db fail"))
		svc := NewFileService(nil, mRepo)

		stats, err := svc.Stats(ctx)

		assert.Error(t, err)
		assert.Nil(t, stats)
	})
}

func TestFileService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockFileRepository)
		wantErr    bool
		checkRes   func(t *testing.T, res *FileListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.File]{
						Items: []model.File{{ID: "1"}, {ID: "2"}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *FileListResult) {
				assert.Len(t, res.Items, 2)
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.File]{Items: []model.File{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(nil, mRepo)

			tt.setupMocks(mRepo)

			res, err := svc.List(ctx, tt.limit, tt.offset)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

// TestFileService_RoundTrip drives Upload and GetContent against the real
// filesystem store so the bytes written are the bytes read back.
func TestFileService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	mRepo := new(repoMocks.MockFileRepository)
	var saved *model.File
	mRepo.On("Create", ctx, mock.Anything).Return(func(ctx context.Context, f *model.File) *model.File {
		saved = f
		return f
	}, nil)

	svc := NewFileService(store, mRepo)

	content := []byte("fourteen bytes")
	res, err := svc.Upload(ctx, UploadInput{
		OriginalName: "hello.txt",
		Data:         content,
		MimeType:     "text/plain",
		DeclaredSize: int64(len(content)),
	})
	require.NoError(t, err)
	require.NotNil(t, saved)

	mRepo.On("FindByID", ctx, res.ID).Return(saved, nil)

	dl, err := svc.GetContent(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, content, dl.Data)
	assert.Equal(t, int64(len(content)), int64(len(dl.Data)))

	// Removing the blob out of band degrades GetContent to not found while
	// metadata is still served.
	require.NoError(t, store.Delete(ctx, saved.StoragePath))

	_, err = svc.GetContent(ctx, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	meta, err := svc.GetMetadata(ctx, res.ID)
	assert.NoError(t, err)
	assert.Equal(t, res.ID, meta.ID)
}

// TestFileService_ConcurrentUploadsDoNotCollide uploads in parallel and checks
// that generated identifiers and storage paths are all distinct.
func TestFileService_ConcurrentUploadsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	mRepo := new(repoMocks.MockFileRepository)
	mRepo.On("Create", mock.Anything, mock.Anything).Return(func(ctx context.Context, f *model.File) *model.File {
		return f
	}, nil)

	svc := NewFileService(store, mRepo)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*UploadResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Upload(ctx, UploadInput{
				OriginalName: "same-name.txt",
				Data:         []byte{byte(i)},
				MimeType:     "text/plain",
				DeclaredSize: 1,
			})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, res := range results {
		require.NotNil(t, res)
		assert.False(t, seen[res.ID], "duplicate id %s", res.ID)
		seen[res.ID] = true
	}
}
