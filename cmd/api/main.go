package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bookapi/docs"
	"bookapi/internal/config"
	"bookapi/internal/database"
	"bookapi/internal/database/migration"
	handlers "bookapi/internal/http/handler"
	"bookapi/internal/http/middleware"
	"bookapi/internal/otel"
	"bookapi/internal/repository"
	"bookapi/internal/repository/memory"
	"bookapi/internal/repository/postgres"
	"bookapi/internal/service"
	"bookapi/internal/storage"
)

// @title Book Catalog API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.UTC

	// Initialize tracing; shutdown flushes pending spans on exit
	shutdownTracing, err := otel.Init(context.Background(), loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Pick the repository: PostgreSQL when configured, otherwise the seeded
	// in-memory catalog.
	var db *sql.DB
	var bookRepo repository.BookRepository
	if cfg.Database.Host != "" {
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
			cancel()
			log.Fatalf("failed to migrate database: %v", err)
		}
		cancel()

		bookRepo = postgres.NewBookPostgres(db)
	} else {
		bookRepo = memory.NewSeeded()
	}

	// Object storage for cover images is optional; cover endpoints are only
	// registered when it is configured.
	var objStore storage.Storage
	if cfg.MinIO.Endpoint != "" {
		objStore, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatalf("failed to initialize object storage: %v", err)
		}
	}

	bookSvc := service.NewBookService(objStore, bookRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// Trace propagation and server spans per request
	app.Use(otelfiber.Middleware())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(loc))
	// Request counter and latency histogram
	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMW.Handler())

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, bookSvc, objStore != nil)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	// Prometheus exposition on its own listener, kept off the API port
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", otelhttp.NewHandler(promhttp.Handler(), "metrics"))
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.Printf("metrics listener stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
