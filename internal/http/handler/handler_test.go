package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookapi/internal/model"
	"bookapi/internal/service"
	serviceMocks "bookapi/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListBooks(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Get("/books", ListBooks(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.BookListResult{
			Items: []model.Book{{ID: 1, Title: "Book1"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, service.ListFilter{}, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.BookListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("filters forwarded", func(t *testing.T) {
		mockSvc.On("List", mock.Anything,
			service.ListFilter{Author: "Author2", Category: "math", Rating: intPtr(1), PublishedYear: 2002},
			10, 0).
			Return(&service.BookListResult{Items: []model.Book{}, Total: 0}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books?author=Author2&category=math&rating=1&published_year=2002", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("zero rating forwarded as a filter", func(t *testing.T) {
		mockSvc.On("List", mock.Anything,
			service.ListFilter{Rating: intPtr(0)},
			10, 0).
			Return(&service.BookListResult{Items: []model.Book{}, Total: 0}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books?rating=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.BookListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, 0, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("negative limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books?limit=-1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("negative offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books?offset=-5", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_OFFSET", body.Error.Code)
	})

	t.Run("invalid rating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books?rating=6", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_RATING", body.Error.Code)
	})

	t.Run("invalid year", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books?published_year=99", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_YEAR", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, service.ListFilter{}, 10, 0).
			Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/books", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestCountBooks(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Get("/books/count", CountBooks(mockSvc))

	mockSvc.On("Count", mock.Anything).Return(6, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/books/count", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, 6, body["count"])
	mockSvc.AssertExpectations(t)
}

func TestBooksByAuthor(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Get("/books/by_author/:author", BooksByAuthor(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("GetByAuthor", mock.Anything, "author2").
			Return([]model.Book{{ID: 2}, {ID: 6}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books/by_author/author2", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var books []model.Book
		json.NewDecoder(resp.Body).Decode(&books)
		assert.Len(t, books, 2)
		mockSvc.AssertExpectations(t)
	})

	t.Run("percent-encoded author", func(t *testing.T) {
		mockSvc.On("GetByAuthor", mock.Anything, "Jane Doe").
			Return([]model.Book{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books/by_author/Jane%20Doe", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetBook(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Get("/books/:id", GetBook(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(1)).
			Return(&model.Book{ID: 1, Title: "Book1"}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books/1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var book model.Book
		json.NewDecoder(resp.Body).Decode(&book)
		assert.Equal(t, "Book1", book.Title)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		for _, raw := range []string{"abc", "0", "-1"} {
			req := httptest.NewRequest(http.MethodGet, "/books/"+raw, nil)
			resp, _ := app.Test(req)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorPayload
			json.NewDecoder(resp.Body).Decode(&body)
			assert.Equal(t, "INVALID_ID", body.Error.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(99)).
			Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/books/99", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestCreateBook(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Post("/books", CreateBook(mockSvc))

	bookJSON := func(req *service.BookRequest) *bytes.Buffer {
		b, _ := json.Marshal(req)
		return bytes.NewBuffer(b)
	}

	valid := &service.BookRequest{
		Title:         "A new book",
		Author:        "Author 1",
		Category:      "science",
		Description:   "A description for a book",
		Rating:        5,
		PublishedYear: 2025,
	}

	t.Run("created", func(t *testing.T) {
		mockSvc.On("Create", mock.Anything, valid).
			Return(&model.Book{ID: 7, Title: valid.Title}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/books", bookJSON(valid))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var book model.Book
		json.NewDecoder(resp.Body).Decode(&book)
		assert.Equal(t, int64(7), book.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("validation error", func(t *testing.T) {
		invalid := *valid
		invalid.Rating = 9
		mockSvc.On("Create", mock.Anything, &invalid).
			Return(nil, fmt.Errorf("%w: rating must be between 1 and 5", service.ErrValidation)).Once()

		req := httptest.NewRequest(http.MethodPost, "/books", bookJSON(&invalid))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_BODY", body.Error.Code)
	})
}

func TestUpdateBook(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Put("/books/:id", UpdateBook(mockSvc))

	valid := &service.BookRequest{
		Title:         "A new book",
		Author:        "Author 1",
		Category:      "science",
		Description:   "A description for a book",
		Rating:        5,
		PublishedYear: 2025,
	}
	body, _ := json.Marshal(valid)

	t.Run("no content on success", func(t *testing.T) {
		mockSvc.On("Update", mock.Anything, int64(3), valid).
			Return(&model.Book{ID: 3}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/books/3", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Update", mock.Anything, int64(99), valid).
			Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodPut, "/books/99", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/books/zero", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeleteBook(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Delete("/books/:id", DeleteBook(mockSvc))

	t.Run("no content on success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(1)).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/books/1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(99)).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/books/99", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUploadBookCover(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Post("/books/:id/cover", UploadBookCover(mockSvc))

	t.Run("created", func(t *testing.T) {
		mockSvc.On("UploadCover", mock.Anything, int64(1), mock.Anything, "cover.png", mock.Anything, mock.Anything).
			Return(&model.Book{ID: 1, CoverPath: "covers/uuid.png"}, nil).Once()

		buf, ct := multipartBody(t, "file", "cover.png", "png bytes")
		req := httptest.NewRequest(http.MethodPost, "/books/1/cover", buf)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var book model.Book
		json.NewDecoder(resp.Body).Decode(&book)
		assert.Equal(t, "covers/uuid.png", book.CoverPath)
		mockSvc.AssertExpectations(t)
	})

	t.Run("file required", func(t *testing.T) {
		buf, ct := multipartBody(t, "other", "cover.png", "png bytes")
		req := httptest.NewRequest(http.MethodPost, "/books/1/cover", buf)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "FILE_REQUIRED", body.Error.Code)
	})

	t.Run("book missing", func(t *testing.T) {
		mockSvc.On("UploadCover", mock.Anything, int64(9), mock.Anything, "cover.png", mock.Anything, mock.Anything).
			Return(nil, service.ErrNotFound).Once()

		buf, ct := multipartBody(t, "file", "cover.png", "png bytes")
		req := httptest.NewRequest(http.MethodPost, "/books/9/cover", buf)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetBookCover(t *testing.T) {
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New()
	app.Get("/books/:id/cover", GetBookCover(mockSvc))

	t.Run("redirects to presigned url", func(t *testing.T) {
		mockSvc.On("CoverURL", mock.Anything, int64(1)).
			Return("https://storage.example/covers/x.png?sig=abc", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/books/1/cover", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://storage.example/covers/x.png?sig=abc", resp.Header.Get("Location"))
		mockSvc.AssertExpectations(t)
	})

	t.Run("no cover", func(t *testing.T) {
		mockSvc.On("CoverURL", mock.Anything, int64(2)).
			Return("", service.ErrNoCover).Once()

		req := httptest.NewRequest(http.MethodGet, "/books/2/cover", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRouteOrdering(t *testing.T) {
	// "count" and "by_author" must not be captured by the :id route.
	mockSvc := new(serviceMocks.MockBookService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, nil, mockSvc, true)

	mockSvc.On("Count", mock.Anything).Return(0, nil).Once()
	req := httptest.NewRequest(http.MethodGet, "/books/count", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mockSvc.On("GetByAuthor", mock.Anything, "someone").Return([]model.Book{}, nil).Once()
	req = httptest.NewRequest(http.MethodGet, "/books/by_author/someone", nil)
	resp, _ = app.Test(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mockSvc.AssertExpectations(t)
	mockSvc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}
