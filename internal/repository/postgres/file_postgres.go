package postgres

import (
	"context"
	"database/sql"

	"filebox/internal/model"
	"filebox/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

// Create inserts a new file row and returns the stored record.
func (r *FilePostgres) Create(ctx context.Context, f *model.File) (*model.File, error) {
	const q = `
		INSERT INTO files (id, original_name, storage_path, size, mime_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, original_name, storage_path, size, mime_type, uploaded_at
	`
	row := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.OriginalName,
		f.StoragePath,
		f.Size,
		f.MimeType,
		f.UploadedAt,
	)
	var out model.File
	if err := row.Scan(
		&out.ID,
		&out.OriginalName,
		&out.StoragePath,
		&out.Size,
		&out.MimeType,
		&out.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single file record by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.File, error) {
	const q = `
		SELECT id, original_name, storage_path, size, mime_type, uploaded_at
		FROM files
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var f model.File
	if err := row.Scan(
		&f.ID,
		&f.OriginalName,
		&f.StoragePath,
		&f.Size,
		&f.MimeType,
		&f.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// List returns file records using LIMIT/OFFSET pagination and a total count.
func (r *FilePostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.File], error) {
	const qCount = `SELECT COUNT(*) FROM files`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, original_name, storage_path, size, mime_type, uploaded_at
		FROM files
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.File, 0)
	for rows.Next() {
		var f model.File
		if err := rows.Scan(
			&f.ID,
			&f.OriginalName,
			&f.StoragePath,
			&f.Size,
			&f.MimeType,
			&f.UploadedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.File]{
		Items: items,
		Total: total,
	}, nil
}

// Count returns the total number of rows in the catalog.
// It always recomputes from the table so multiple service instances agree.
func (r *FilePostgres) Count(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM files`
	var total int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
