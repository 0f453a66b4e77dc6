package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"filebox/internal/model"
	"filebox/internal/repository"
	"filebox/internal/storage"
)

// MaxUploadSize is the only admission-control limit: uploads declaring more
// than 200 MiB are rejected before any storage I/O.
const MaxUploadSize = 200 << 20

var (
	ErrNameRequired = errors.New("file name cannot be empty")
	ErrSizeInvalid  = errors.New("file size must be positive and cannot exceed 200 MiB")
	ErrSizeMismatch = errors.New("file size mismatch: decoded data does not match declared size")
	ErrIDRequired   = errors.New("id is required")
	ErrNotFound     = errors.New("file not found")
)

// UploadInput carries a decoded upload payload into the ingest path.
type UploadInput struct {
	OriginalName string
	Data         []byte
	MimeType     string
	DeclaredSize int64
}

// UploadResult is returned to the caller after a committed ingest.
type UploadResult struct {
	ID           string    `json:"id"`
	PublicLink   string    `json:"public_link"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"file_size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// FileDownload is the full-content retrieval DTO.
type FileDownload struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Data         []byte `json:"-"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"file_size"`
}

// FileStats is the aggregate catalog count.
type FileStats struct {
	TotalFiles int64 `json:"total_files"`
}

// FileListResult is the service-level DTO for paginated file records.
type FileListResult struct {
	Items []model.File `json:"data"`
	Total int          `json:"total"`
}

// FileService defines the use cases for sharing files.
type FileService interface {
	// Upload validates the payload, writes the blob, records catalog metadata,
	// and returns a response carrying the public link. The catalog insert is
	// only attempted after the blob write fully succeeds.
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)

	// GetContent returns a file's bytes and metadata by ID. A row whose
	// backing blob is gone yields ErrNotFound, same as an absent row.
	GetContent(ctx context.Context, id string) (*FileDownload, error)

	// GetMetadata returns the catalog row only; the caller streams the blob
	// itself using StoragePath.
	GetMetadata(ctx context.Context, id string) (*model.File, error)

	// List returns file records using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*FileListResult, error)

	// Stats returns the total number of committed files, recomputed from the
	// catalog on every call.
	Stats(ctx context.Context) (*FileStats, error)
}

type fileService struct {
	store storage.BlobStore
	repo  repository.FileRepository
}

// NewFileService constructs a new FileService.
func NewFileService(store storage.BlobStore, repo repository.FileRepository) FileService {
	return &fileService{store: store, repo: repo}
}

// mimeExtensions maps client content-type hints to storage extensions when the
// original name carries none.
var mimeExtensions = map[string]string{
	"image/jpeg":             ".jpg",
	"image/jpg":              ".jpg",
	"image/png":              ".png",
	"image/gif":              ".gif",
	"image/webp":             ".webp",
	"text/plain":             ".txt",
	"application/pdf":        ".pdf",
	"application/json":       ".json",
	"text/html":              ".html",
	"text/css":               ".css",
	"application/javascript": ".js",
	"text/javascript":        ".js",
}

// storageExt picks the extension for the stored blob: the original name's
// suffix wins, then the mime map, then none. The original name itself never
// reaches the storage path.
func storageExt(originalName, mimeType string) string {
	if i := strings.LastIndexByte(originalName, '.'); i >= 0 && i < len(originalName)-1 {
		return originalName[i:]
	}
	return mimeExtensions[mimeType]
}

func (s *fileService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(in.OriginalName) == "" {
		return nil, ErrNameRequired
	}
	if in.DeclaredSize <= 0 || in.DeclaredSize > MaxUploadSize {
		return nil, ErrSizeInvalid
	}
	if int64(len(in.Data)) != in.DeclaredSize {
		return nil, ErrSizeMismatch
	}

	id := uuid.New().String()
	key := path.Join("files", id+storageExt(in.OriginalName, in.MimeType))

	// Blob first; the catalog insert below runs only after this succeeds.
	if _, err := s.store.Put(ctx, key, bytes.NewReader(in.Data), storage.PutObjectOptions{
		Size:        in.DeclaredSize,
		ContentType: in.MimeType,
		Metadata: map[string]string{
			"original-filename": in.OriginalName,
		},
	}); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	f := &model.File{
		ID:           id,
		OriginalName: in.OriginalName,
		StoragePath:  key,
		Size:         in.DeclaredSize,
		MimeType:     in.MimeType,
		UploadedAt:   time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, f)
	if err != nil {
		// Rollback: best effort delete of the just-written blob. An orphan
		// blob is a safe dangling state either way; it is never discoverable.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	return &UploadResult{
		ID:           stored.ID,
		PublicLink:   "/file/" + stored.ID,
		OriginalName: stored.OriginalName,
		Size:         stored.Size,
		UploadedAt:   stored.UploadedAt,
	}, nil
}

func (s *fileService) GetContent(ctx context.Context, id string) (*FileDownload, error) {
	f, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	rc, _, err := s.store.Get(ctx, f.StoragePath)
	if err != nil {
		// Catalog row present but blob gone: degrade to not found rather than
		// surfacing an internal error.
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read from storage: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read from storage: %w", err)
	}

	return &FileDownload{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		Data:         data,
		MimeType:     f.MimeType,
		Size:         f.Size,
	}, nil
}

func (s *fileService) GetMetadata(ctx context.Context, id string) (*model.File, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// List returns paginated file records without exposing repository types.
func (s *fileService) List(ctx context.Context, limit, offset int) (*FileListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &FileListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *fileService) Stats(ctx context.Context) (*FileStats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &FileStats{TotalFiles: total}, nil
}
