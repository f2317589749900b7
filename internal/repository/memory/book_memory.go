package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"bookapi/internal/model"
	"bookapi/internal/repository"
)

// BookMemory is an in-memory implementation of repository.BookRepository.
// It backs the server when no database is configured and keeps insertion order,
// assigning sequential IDs starting from the last stored one.
// Safe for concurrent use.
type BookMemory struct {
	mu    sync.RWMutex
	books []model.Book
}

// NewBookMemory creates an empty in-memory repository.
func NewBookMemory() *BookMemory {
	return &BookMemory{}
}

// NewSeeded creates an in-memory repository pre-populated with a small catalog.
func NewSeeded() *BookMemory {
	now := time.Now().UTC()
	return &BookMemory{
		books: []model.Book{
			{ID: 1, Title: "Book1", Author: "Author1", Category: "science", Description: "Description1", Rating: 5, PublishedYear: 2001, CreatedAt: now},
			{ID: 2, Title: "Book2", Author: "Author2", Category: "science", Description: "Description2", Rating: 4, PublishedYear: 2001, CreatedAt: now},
			{ID: 3, Title: "Book3", Author: "Author3", Category: "history", Description: "Description3", Rating: 3, PublishedYear: 2002, CreatedAt: now},
			{ID: 4, Title: "Book4", Author: "Author4", Category: "math", Description: "Description4", Rating: 5, PublishedYear: 2002, CreatedAt: now},
			{ID: 5, Title: "Book5", Author: "Author5", Category: "math", Description: "Description5", Rating: 2, PublishedYear: 2001, CreatedAt: now},
			{ID: 6, Title: "Book6", Author: "Author2", Category: "math", Description: "Description6", Rating: 1, PublishedYear: 2002, CreatedAt: now},
		},
	}
}

var _ repository.BookRepository = (*BookMemory)(nil)

// Create stores a copy of book with the next sequential ID.
func (r *BookMemory) Create(_ context.Context, book *model.Book) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *book
	if len(r.books) > 0 {
		stored.ID = r.books[len(r.books)-1].ID + 1
	} else {
		stored.ID = 1
	}
	r.books = append(r.books, stored)

	out := stored
	return &out, nil
}

// FindByID returns a copy of the book with the given ID.
func (r *BookMemory) FindByID(_ context.Context, id int64) (*model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.books {
		if r.books[i].ID == id {
			out := r.books[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func matches(b *model.Book, f repository.BookFilter) bool {
	if f.Author != "" && !strings.EqualFold(b.Author, f.Author) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
		return false
	}
	if f.Rating != nil && b.Rating != *f.Rating {
		return false
	}
	if f.PublishedYear != 0 && b.PublishedYear != f.PublishedYear {
		return false
	}
	return true
}

// List returns the filtered page and the total match count.
func (r *BookMemory) List(_ context.Context, f repository.BookFilter, pq repository.PageQuery) (*repository.PageResult[model.Book], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := make([]model.Book, 0)
	for i := range r.books {
		if matches(&r.books[i], f) {
			filtered = append(filtered, r.books[i])
		}
	}
	total := len(filtered)

	start := pq.Offset
	if start > total {
		start = total
	}
	end := start + pq.Limit
	if pq.Limit <= 0 || end > total {
		end = total
	}

	return &repository.PageResult[model.Book]{
		Items: filtered[start:end],
		Total: total,
	}, nil
}

// Count returns the number of stored books.
func (r *BookMemory) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books), nil
}

// Update replaces the stored record with book's fields, keeping ID, cover and creation time.
func (r *BookMemory) Update(_ context.Context, book *model.Book) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.books {
		if r.books[i].ID == book.ID {
			r.books[i].Title = book.Title
			r.books[i].Author = book.Author
			r.books[i].Category = book.Category
			r.books[i].Description = book.Description
			r.books[i].Rating = book.Rating
			r.books[i].PublishedYear = book.PublishedYear
			out := r.books[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// SetCoverPath stores the cover object key on a book.
func (r *BookMemory) SetCoverPath(_ context.Context, id int64, coverPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.books {
		if r.books[i].ID == id {
			r.books[i].CoverPath = coverPath
			return nil
		}
	}
	return repository.ErrNotFound
}

// Delete removes a book by ID.
func (r *BookMemory) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.books {
		if r.books[i].ID == id {
			r.books = append(r.books[:i], r.books[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}
