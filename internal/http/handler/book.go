package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"bookapi/internal/service"
)

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a bare liveness check.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// urlDecodedParam returns a path parameter with percent-encoding removed,
// so "Jane%20Doe" matches the stored "Jane Doe".
func urlDecodedParam(c *fiber.Ctx, name string) (string, error) {
	return url.PathUnescape(c.Params(name))
}

// bookID parses the :id path parameter. IDs are positive integers.
func bookID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// serviceError maps service sentinel errors onto the error envelope.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "book not found")
	case errors.Is(err, service.ErrNoCover):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "book has no cover")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ListBooks returns a paginated, optionally filtered book listing.
// Query parameters: category, author, rating, published_year, limit, offset.
func ListBooks(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil || limit < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil || offset < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		f := service.ListFilter{
			Author:   c.Query("author"),
			Category: c.Query("category"),
		}
		if v := c.Query("rating"); v != "" {
			r, err := strconv.Atoi(v)
			if err != nil || r < 0 || r > 5 {
				return writeError(c, fiber.StatusBadRequest, "INVALID_RATING", "rating must be between 0 and 5")
			}
			// Zero is a queryable rating that matches nothing stored.
			f.Rating = &r
		}
		if v := c.Query("published_year"); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil || y < 1000 || y > 2100 {
				return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "published_year must be between 1000 and 2100")
			}
			f.PublishedYear = y
		}

		res, err := svc.List(c.UserContext(), f, limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// CountBooks returns the catalog size.
func CountBooks(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := svc.Count(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"count": n})
	}
}

// BooksByAuthor returns all books by an author, matched case-insensitively.
func BooksByAuthor(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		author, err := urlDecodedParam(c, "author")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_AUTHOR", "invalid author")
		}
		books, err := svc.GetByAuthor(c.UserContext(), author)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(books)
	}
}

// GetBook returns a single book by its ID.
func GetBook(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := bookID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		}
		book, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(book)
	}
}

// CreateBook validates the JSON body and stores a new book.
func CreateBook(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req service.BookRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		book, err := svc.Create(c.UserContext(), &req)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(book)
	}
}

// UpdateBook fully replaces a book's client-editable fields.
func UpdateBook(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := bookID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		}
		var req service.BookRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if _, err := svc.Update(c.UserContext(), id, &req); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteBook removes a book by ID.
func DeleteBook(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := bookID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// UploadBookCover accepts a multipart cover image (field name: file) for a book.
func UploadBookCover(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := bookID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		book, err := svc.UploadCover(c.UserContext(), id, f, fh.Filename, ct, fh.Size)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(book)
	}
}

// GetBookCover redirects to a presigned download URL for the book's cover.
func GetBookCover(svc service.BookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := bookID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		}
		u, err := svc.CoverURL(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Redirect(u, fiber.StatusFound)
	}
}
