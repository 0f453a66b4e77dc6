package repository

import (
	"context"

	"filebox/internal/model"
)

// FileRepository defines data access for the file catalog using SQL queries only.
// No business logic here — strictly persistence operations.
//
// The catalog is insert-only: rows are never updated or deleted once created.
type FileRepository interface {
	// Create inserts a new file record and returns the stored row
	// (may include values set by the DB).
	Create(ctx context.Context, f *model.File) (*model.File, error)

	// FindByID returns a file record by its ID.
	// Returns sql.ErrNoRows untouched when the row is absent; callers map it.
	FindByID(ctx context.Context, id string) (*model.File, error)

	// List returns a paginated list of file records and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.File], error)

	// Count returns the total number of catalog rows. It must query the
	// catalog's own aggregate rather than any cached counter.
	Count(ctx context.Context) (int64, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
