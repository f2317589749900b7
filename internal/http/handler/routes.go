package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"bookapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
//
// Registration order under /books matters: collection root first, then static
// segments, then specific dynamics, then the generic :id, then mutations.
// Otherwise "count" or "by_author" would be captured as an id.
func RegisterRoutes(app *fiber.App, db *sql.DB, bookSvc service.BookService, withCovers bool) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Readiness: checks DB connectivity only. Without a database the server is
	// serving from memory and is ready by definition.
	if db != nil {
		app.Get("/health", HealthCheck(db))
	} else {
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
		})
	}

	// Backward-compatible simple liveness probe
	app.Get("/healthz", LivenessProbe())

	// 1. Collection root
	app.Get("/books", ListBooks(bookSvc))

	// 2. Statics
	app.Get("/books/count", CountBooks(bookSvc))

	// 3. Specific dynamics
	app.Get("/books/by_author/:author", BooksByAuthor(bookSvc))

	// 4. Generic dynamics
	if withCovers {
		app.Get("/books/:id/cover", GetBookCover(bookSvc))
	}
	app.Get("/books/:id", GetBook(bookSvc))

	// 5. Mutations
	app.Post("/books", CreateBook(bookSvc))
	if withCovers {
		app.Post("/books/:id/cover", UploadBookCover(bookSvc))
	}
	app.Put("/books/:id", UpdateBook(bookSvc))
	app.Delete("/books/:id", DeleteBook(bookSvc))
}
