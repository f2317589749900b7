package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bookapi/internal/model"
	"bookapi/internal/repository"
)

// BookPostgres is a PostgreSQL implementation of repository.BookRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type BookPostgres struct {
	db *sql.DB
}

// NewBookPostgres creates a new BookPostgres repository.
func NewBookPostgres(db *sql.DB) *BookPostgres {
	return &BookPostgres{db: db}
}

var _ repository.BookRepository = (*BookPostgres)(nil)

const bookColumns = "id, title, author, category, description, rating, published_year, cover_path, created_at"

func scanBook(row interface{ Scan(dest ...any) error }) (*model.Book, error) {
	var b model.Book
	if err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Category,
		&b.Description,
		&b.Rating,
		&b.PublishedYear,
		&b.CoverPath,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a new book row and returns the stored record.
// The id comes from the books_id_seq sequence.
func (r *BookPostgres) Create(ctx context.Context, book *model.Book) (*model.Book, error) {
	const q = `
		INSERT INTO books (title, author, category, description, rating, published_year, cover_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + bookColumns
	row := r.db.QueryRowContext(ctx, q,
		book.Title,
		book.Author,
		book.Category,
		book.Description,
		book.Rating,
		book.PublishedYear,
		book.CoverPath,
		book.CreatedAt,
	)
	return scanBook(row)
}

// FindByID fetches a single book by its ID.
func (r *BookPostgres) FindByID(ctx context.Context, id int64) (*model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	b, err := scanBook(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// filterClause builds a WHERE clause and args for the given filter.
// String filters compare case-insensitively in SQL.
func filterClause(f repository.BookFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Author != "" {
		conds = append(conds, "LOWER(author) = LOWER("+arg(f.Author)+")")
	}
	if f.Category != "" {
		conds = append(conds, "LOWER(category) = LOWER("+arg(f.Category)+")")
	}
	if f.Rating != nil {
		conds = append(conds, "rating = "+arg(*f.Rating))
	}
	if f.PublishedYear != 0 {
		conds = append(conds, "published_year = "+arg(f.PublishedYear))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns books using LIMIT/OFFSET pagination and a total count for the filter.
func (r *BookPostgres) List(ctx context.Context, f repository.BookFilter, pq repository.PageQuery) (*repository.PageResult[model.Book], error) {
	where, args := filterClause(f)

	// Count total rows for the same filter
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books"+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	qList := "SELECT " + bookColumns + " FROM books" + where +
		fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Book]{
		Items: items,
		Total: total,
	}, nil
}

// Count returns the number of books in the catalog.
func (r *BookPostgres) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM books`
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Update replaces the row identified by book.ID and returns the stored record.
func (r *BookPostgres) Update(ctx context.Context, book *model.Book) (*model.Book, error) {
	const q = `
		UPDATE books
		SET title = $2, author = $3, category = $4, description = $5, rating = $6, published_year = $7
		WHERE id = $1
		RETURNING ` + bookColumns
	b, err := scanBook(r.db.QueryRowContext(ctx, q,
		book.ID,
		book.Title,
		book.Author,
		book.Category,
		book.Description,
		book.Rating,
		book.PublishedYear,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// SetCoverPath stores the cover object key on a book row.
func (r *BookPostgres) SetCoverPath(ctx context.Context, id int64, coverPath string) error {
	const q = `UPDATE books SET cover_path = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, coverPath)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a book by ID.
func (r *BookPostgres) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM books WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
