// Package http provides the HTTP delivery layer for the URL shortener
// service: routing, request validation and response formatting.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/avolkov/shortly/internal/models"
	"github.com/avolkov/shortly/internal/service"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// Shorten creates a short code for the given URL, or returns the existing
	// mapping when the same URL is still valid.
	Shorten(ctx context.Context, params service.ShortenParams) (*service.ShortenResult, error)

	// Resolve resolves a short code into its record, recording the visit.
	Resolve(ctx context.Context, shortCode string) (*models.URL, error)

	// Stats retrieves a record regardless of its active or expiry state.
	Stats(ctx context.Context, shortCode string) (*models.URL, error)

	// List returns one page of records plus the total matching the filter.
	List(ctx context.Context, params service.ListParams) (*service.ListResult, error)

	// Delete removes a record and returns its last state.
	Delete(ctx context.Context, shortCode string) (*models.URL, error)

	// SetActive toggles the activation flag and returns the updated record.
	SetActive(ctx context.Context, shortCode string, isActive bool) (*models.URL, error)
}

// getValidate initializes a validator instance for incoming request payloads,
// reporting field names by their JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	validate := getValidate()

	r.Get("/ping", handlePing)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Post("/shorten", handleShortenURL(urlSvc, validate))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats/{shortCode}", handleGetURLStats(urlSvc))

		r.Route("/urls", func(r chi.Router) {
			r.Get("/", handleListURLs(urlSvc))
			r.Delete("/{shortCode}", handleDeleteURL(urlSvc))
			r.Patch("/{shortCode}/status", handleSetURLStatus(urlSvc, validate))
		})
	})

	// Registered last so static routes above take precedence.
	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
