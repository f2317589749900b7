package repository

import (
	"context"

	"bookapi/internal/model"
)

// BookRepository defines data access for books using persistence operations only.
// No business logic here.
type BookRepository interface {
	// Create inserts a new book record. The implementation assigns the ID.
	// Returns the stored book (including values set by the store).
	Create(ctx context.Context, book *model.Book) (*model.Book, error)

	// FindByID returns a book by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Book, error)

	// List returns a paginated list of books and total rows count for the given filter.
	List(ctx context.Context, f BookFilter, pq PageQuery) (*PageResult[model.Book], error)

	// Count returns the number of books in the catalog.
	Count(ctx context.Context) (int, error)

	// Update replaces the record identified by book.ID, or returns ErrNotFound.
	Update(ctx context.Context, book *model.Book) (*model.Book, error)

	// SetCoverPath stores the cover object key on a book row, or returns ErrNotFound.
	SetCoverPath(ctx context.Context, id int64, coverPath string) error

	// Delete removes a book by ID, or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error
}

// BookFilter holds optional filters for listing.
// Empty strings and a zero PublishedYear mean "no filter" (no stored year is
// zero). Rating is a pointer because 0 is a queryable value that matches no
// stored book; nil means no rating filter.
// String matching is case-insensitive.
type BookFilter struct {
	Author        string
	Category      string
	Rating        *int
	PublishedYear int
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
