package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"bookapi/internal/model"
	"bookapi/internal/repository"
	"bookapi/internal/storage"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("book not found")
	ErrNoCover    = errors.New("book has no cover")
	ErrReaderNil  = errors.New("reader is nil")
)

// Bounds enforced on create and update.
const (
	minTitleLen    = 3
	maxDescLen     = 100
	minRating      = 1
	maxRating      = 5
	minPublishYear = 1000
	maxPublishYear = 2100
)

// coverURLExpiry limits how long a presigned cover download link stays valid.
const coverURLExpiry = 15 * time.Minute

// byAuthorPageSize is the repository page size used when collecting the full
// by-author listing.
const byAuthorPageSize = 1000

// BookRequest carries client-supplied fields for create and update.
// The ID is never client-assigned.
type BookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Rating        int    `json:"rating"`
	PublishedYear int    `json:"published_year"`
}

// Validate checks the request against the catalog's field bounds.
// Length bounds count characters, not bytes, matching the char_length CHECK
// constraints on the books table.
// Returns an error wrapping ErrValidation naming the first offending field.
func (r *BookRequest) Validate() error {
	switch {
	case utf8.RuneCountInString(r.Title) < minTitleLen:
		return fmt.Errorf("%w: title must be at least %d characters", ErrValidation, minTitleLen)
	case r.Author == "":
		return fmt.Errorf("%w: author is required", ErrValidation)
	case r.Category == "":
		return fmt.Errorf("%w: category is required", ErrValidation)
	case r.Description == "" || utf8.RuneCountInString(r.Description) > maxDescLen:
		return fmt.Errorf("%w: description must be between 1 and %d characters", ErrValidation, maxDescLen)
	case r.Rating < minRating || r.Rating > maxRating:
		return fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, minRating, maxRating)
	case r.PublishedYear < minPublishYear || r.PublishedYear > maxPublishYear:
		return fmt.Errorf("%w: published_year must be between %d and %d", ErrValidation, minPublishYear, maxPublishYear)
	}
	return nil
}

// ListFilter holds the optional list filters accepted by the API.
// String matches are case-insensitive. Rating is nil when absent; a zero
// rating is a valid query that matches no stored book.
type ListFilter struct {
	Author        string
	Category      string
	Rating        *int
	PublishedYear int
}

// BookListResult is the service-level DTO for paginated books.
type BookListResult struct {
	Items []model.Book `json:"data"`
	Total int          `json:"total"`
}

// BookService defines the use cases for managing the catalog.
type BookService interface {
	// List returns books matching the filter using limit/offset and a total count.
	List(ctx context.Context, f ListFilter, limit, offset int) (*BookListResult, error)

	// Count returns the number of books in the catalog.
	Count(ctx context.Context) (int, error)

	// GetByAuthor returns all books by the given author, matched case-insensitively.
	GetByAuthor(ctx context.Context, author string) ([]model.Book, error)

	// Get returns a single book by its ID.
	Get(ctx context.Context, id int64) (*model.Book, error)

	// Create validates the request and stores a new book with a system-assigned ID.
	Create(ctx context.Context, req *BookRequest) (*model.Book, error)

	// Update validates the request and replaces the book identified by id.
	Update(ctx context.Context, id int64, req *BookRequest) (*model.Book, error)

	// Delete removes a book by ID.
	Delete(ctx context.Context, id int64) error

	// UploadCover streams a cover image to object storage and records its key on the
	// book, rolling back the object if the record update fails.
	// originalFilename is used only to extract the extension; the stored object name
	// is UUID + original extension.
	UploadCover(ctx context.Context, id int64, r io.Reader, originalFilename string, contentType string, size int64) (*model.Book, error)

	// CoverURL returns a presigned, time-limited download URL for the book's cover.
	CoverURL(ctx context.Context, id int64) (string, error)
}

// bookService is a concrete implementation of BookService.
type bookService struct {
	store storage.Storage
	repo  repository.BookRepository
}

// NewBookService constructs a new BookService.
func NewBookService(store storage.Storage, repo repository.BookRepository) BookService {
	return &bookService{store: store, repo: repo}
}

// List returns paginated books without exposing repository types.
func (s *bookService) List(ctx context.Context, f ListFilter, limit, offset int) (*BookListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.BookFilter{
		Author:        f.Author,
		Category:      f.Category,
		Rating:        f.Rating,
		PublishedYear: f.PublishedYear,
	}, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &BookListResult{Items: res.Items, Total: res.Total}, nil
}

// Count returns the catalog size.
func (s *bookService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// GetByAuthor returns every book by the author, paging through the repository
// until the listing is exhausted. The result may be empty.
func (s *bookService) GetByAuthor(ctx context.Context, author string) ([]model.Book, error) {
	if author == "" {
		return nil, fmt.Errorf("%w: author is required", ErrValidation)
	}

	books := make([]model.Book, 0)
	for offset := 0; ; offset += byAuthorPageSize {
		res, err := s.repo.List(ctx,
			repository.BookFilter{Author: author},
			repository.PageQuery{Limit: byAuthorPageSize, Offset: offset},
		)
		if err != nil {
			return nil, err
		}
		books = append(books, res.Items...)
		if len(res.Items) < byAuthorPageSize || len(books) >= res.Total {
			break
		}
	}
	return books, nil
}

// Get returns a book by ID.
func (s *bookService) Get(ctx context.Context, id int64) (*model.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

// Create validates and stores a new book. The repository assigns the next sequential ID.
func (s *bookService) Create(ctx context.Context, req *BookRequest) (*model.Book, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	book := &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		Category:      req.Category,
		Description:   req.Description,
		Rating:        req.Rating,
		PublishedYear: req.PublishedYear,
		CreatedAt:     time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return stored, nil
}

// Update validates and fully replaces the book's client-editable fields.
func (s *bookService) Update(ctx context.Context, id int64, req *BookRequest) (*model.Book, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	book := &model.Book{
		ID:            id,
		Title:         req.Title,
		Author:        req.Author,
		Category:      req.Category,
		Description:   req.Description,
		Rating:        req.Rating,
		PublishedYear: req.PublishedYear,
	}
	stored, err := s.repo.Update(ctx, book)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update book: %w", err)
	}
	return stored, nil
}

// Delete removes a book by ID.
func (s *bookService) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *bookService) UploadCover(ctx context.Context, id int64, r io.Reader, originalFilename string, contentType string, size int64) (*model.Book, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Generate object name using UUID + extension
	ext := filepath.Ext(originalFilename)
	key := filepath.ToSlash(filepath.Join("covers", uuid.New().String()+ext))

	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	if err := s.repo.SetCoverPath(ctx, id, objInfo.Key); err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, objInfo.Key); delErr != nil {
			return nil, fmt.Errorf("record cover failed: %v; rollback delete failed: %v", err, delErr)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record cover failed: %w", err)
	}

	// Replacing an existing cover leaves the old object behind; drop it best-effort.
	if book.CoverPath != "" && book.CoverPath != objInfo.Key {
		_ = s.store.Delete(ctx, book.CoverPath)
	}

	book.CoverPath = objInfo.Key
	return book, nil
}

// CoverURL presigns a download link for the book's stored cover.
func (s *bookService) CoverURL(ctx context.Context, id int64) (string, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if book.CoverPath == "" {
		return "", ErrNoCover
	}
	u, err := s.store.PresignGet(ctx, book.CoverPath, coverURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return u, nil
}
