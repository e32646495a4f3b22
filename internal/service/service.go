package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avolkov/shortly/internal/database"
	"github.com/avolkov/shortly/internal/models"
	"github.com/avolkov/shortly/internal/shortcode"
	"github.com/avolkov/shortly/pkg/logging"
)

var (
	// ErrInvalidURL is returned when the submitted URL is not an absolute
	// http/https URL after sanitization.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidValidity is returned when the validity period is out of range.
	ErrInvalidValidity = errors.New("invalid validity period")
	// ErrInvalidCustomCode is returned when a caller-supplied short code is malformed.
	ErrInvalidCustomCode = errors.New("invalid custom short code")
	// ErrShortCodeTaken is returned when a caller-supplied short code is already in use.
	ErrShortCodeTaken = errors.New("short code already in use")
	// ErrURLExpired is returned when a short code exists but its validity period ended.
	ErrURLExpired = errors.New("url expired")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries for
	// generating a unique short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

const (
	// DefaultValidityMinutes applies when a shorten request carries no validity.
	DefaultValidityMinutes = 30
	// MaxValidityMinutes caps the validity period at one year.
	MaxValidityMinutes = 525600

	maxGenerateAttempts = 10

	defaultPageLimit = 10
	maxPageLimit     = 100
)

// URLRepository defines the interface for working with URLs at the business logic layer.
type URLRepository interface {
	// Create inserts a new shortened URL into the repository.
	Create(ctx context.Context, params database.CreateURLParams) (*models.URL, error)

	// GetByShortCode retrieves a URL by its short code regardless of active state.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// GetActiveByShortCode retrieves a URL by its short code among active records only.
	GetActiveByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// FindActiveByOriginalURL retrieves an active, unexpired URL by its original URL.
	FindActiveByOriginalURL(ctx context.Context, originalURL string, now time.Time) (*models.URL, error)

	// CodeInUse reports whether any record holds the given short code.
	CodeInUse(ctx context.Context, shortCode string) (bool, error)

	// RecordVisit increments the click counter of an active, unexpired record.
	RecordVisit(ctx context.Context, shortCode string, now time.Time) (*models.URL, error)

	// List returns one page of records plus the total matching the filter.
	List(ctx context.Context, params database.ListURLsParams) ([]*models.URL, int64, error)

	// Delete removes a URL by its short code and returns its last state.
	Delete(ctx context.Context, shortCode string) (*models.URL, error)

	// SetActive toggles the activation flag of a URL.
	SetActive(ctx context.Context, shortCode string, isActive bool) (*models.URL, error)

	// DeleteExpired removes records past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// codeGenerator produces candidate short codes with no uniqueness guarantee.
type codeGenerator interface {
	Generate() string
}

// eventLogger ships domain events to the remote logging collaborator.
// It is used for observability side effects only, never for correctness.
type eventLogger interface {
	Log(ctx context.Context, stack logging.Stack, level logging.Level, pkg, msg string) error
}

// ShortenParams carries the inputs of a shorten request. A zero
// ValidityMinutes selects the service default; an empty CustomCode requests
// a generated one.
type ShortenParams struct {
	URL             string
	ValidityMinutes int64
	CustomCode      string
}

// ShortenResult is the outcome of a shorten request. Existing is true when
// dedup returned an already stored record instead of creating a new one.
type ShortenResult struct {
	URL      *models.URL
	Existing bool
}

// ListParams carries the inputs of a list request.
type ListParams struct {
	Page           int
	Limit          int
	SortBy         string
	SortOrder      string
	IncludeExpired bool
}

// ListResult is one page of records plus the total matching the filter.
type ListResult struct {
	URLs  []*models.URL
	Total int64
	Page  int
	Limit int
}

// URLService provides the URL shortening, redirection and admin operations.
// All coordination is delegated to the repository's store-native atomicity.
type URLService struct {
	repo            URLRepository
	gen             codeGenerator
	logger          eventLogger
	defaultValidity int64
	now             func() time.Time
}

// NewURLService creates a new URLService. A non-positive defaultValidity
// falls back to DefaultValidityMinutes.
func NewURLService(repo URLRepository, gen codeGenerator, logger eventLogger, defaultValidity int64) *URLService {
	if defaultValidity <= 0 {
		defaultValidity = DefaultValidityMinutes
	}

	return &URLService{
		repo:            repo,
		gen:             gen,
		logger:          logger,
		defaultValidity: defaultValidity,
		now:             time.Now,
	}
}

// Shorten validates and sanitizes the request, returns an existing mapping
// when the same URL is still valid (dedup), and otherwise persists a new
// record under either the caller-supplied code or a generated unique one.
func (s *URLService) Shorten(ctx context.Context, params ShortenParams) (*ShortenResult, error) {
	const op = "service.URLService.Shorten"

	originalURL, err := sanitizeURL(params.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	validity := params.ValidityMinutes
	if validity == 0 {
		validity = s.defaultValidity
	}
	if validity < 1 || validity > MaxValidityMinutes {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidValidity)
	}

	if params.CustomCode != "" && !shortcode.ValidCustomCode(params.CustomCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCustomCode)
	}

	now := s.now()

	existing, err := s.repo.FindActiveByOriginalURL(ctx, originalURL, now)
	if err == nil {
		return &ShortenResult{URL: existing, Existing: true}, nil
	}
	if !errors.Is(err, database.ErrURLNotFound) {
		return nil, fmt.Errorf("%s: failed to check for existing url: %w", op, err)
	}

	createParams := database.CreateURLParams{
		OriginalURL:     originalURL,
		ValidityMinutes: validity,
		ExpiresAt:       now.Add(time.Duration(validity) * time.Minute),
	}

	if params.CustomCode != "" {
		url, err := s.createWithCustomCode(ctx, createParams, params.CustomCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		_ = s.logger.Log(ctx, logging.StackBackend, logging.LevelInfo, "service",
			fmt.Sprintf("short url created with custom code %q", url.ShortCode))

		return &ShortenResult{URL: url}, nil
	}

	url, err := s.createWithGeneratedCode(ctx, createParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_ = s.logger.Log(ctx, logging.StackBackend, logging.LevelInfo, "service",
		fmt.Sprintf("short url created with code %q", url.ShortCode))

	return &ShortenResult{URL: url}, nil
}

// createWithCustomCode enforces global code uniqueness: any record holding
// the code blocks it, regardless of active or expiry state. A store-level
// uniqueness violation from a concurrent insert is surfaced the same way.
func (s *URLService) createWithCustomCode(ctx context.Context, params database.CreateURLParams, code string) (*models.URL, error) {
	inUse, err := s.repo.CodeInUse(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check short code: %w", err)
	}
	if inUse {
		return nil, ErrShortCodeTaken
	}

	params.ShortCode = code

	url, err := s.repo.Create(ctx, params)
	if err != nil {
		if errors.Is(err, database.ErrShortCodeExists) {
			return nil, ErrShortCodeTaken
		}
		return nil, fmt.Errorf("failed to create url: %w", err)
	}

	return url, nil
}

// createWithGeneratedCode retries candidate codes up to a fixed bound,
// treating a store uniqueness violation as a collision.
func (s *URLService) createWithGeneratedCode(ctx context.Context, params database.CreateURLParams) (*models.URL, error) {
	for i := 0; i < maxGenerateAttempts; i++ {
		params.ShortCode = s.gen.Generate()

		url, err := s.repo.Create(ctx, params)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}
			return nil, fmt.Errorf("failed to create url: %w", err)
		}

		return url, nil
	}

	return nil, ErrMaxRetriesExceeded
}

// Resolve resolves a short code into its record for redirecting, recording
// the visit atomically. Inactive records are invisible here and report as
// not found; an active record past its expiry reports ErrURLExpired with the
// click counter untouched.
func (s *URLService) Resolve(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.Resolve"

	url, err := s.repo.RecordVisit(ctx, shortCode, s.now())
	if err == nil {
		_ = s.logger.Log(ctx, logging.StackBackend, logging.LevelInfo, "service",
			fmt.Sprintf("redirecting %q", shortCode))

		return url, nil
	}
	if !errors.Is(err, database.ErrURLNotFound) {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	// The visit missed either because the code is unknown or inactive, or
	// because the record is expired. Only the latter is reported distinctly.
	if _, err := s.repo.GetActiveByShortCode(ctx, shortCode); err != nil {
		if errors.Is(err, database.ErrURLNotFound) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
}

// Stats retrieves a record regardless of its active or expiry state.
func (s *URLService) Stats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.Stats"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// List returns a page of records, newest first by default. Expired records
// are excluded unless IncludeExpired is set.
func (s *URLService) List(ctx context.Context, params ListParams) (*ListResult, error) {
	const op = "service.URLService.List"

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = defaultPageLimit
	}
	if params.Limit > maxPageLimit {
		params.Limit = maxPageLimit
	}
	if params.SortOrder != database.SortOrderAsc {
		params.SortOrder = database.SortOrderDesc
	}

	urls, total, err := s.repo.List(ctx, database.ListURLsParams{
		Page:           params.Page,
		Limit:          params.Limit,
		SortBy:         params.SortBy,
		SortOrder:      params.SortOrder,
		IncludeExpired: params.IncludeExpired,
		Now:            s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return &ListResult{
		URLs:  urls,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}, nil
}

// Delete removes a record unconditionally and returns its last state.
func (s *URLService) Delete(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.Delete"

	url, err := s.repo.Delete(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	_ = s.logger.Log(ctx, logging.StackBackend, logging.LevelWarn, "service",
		fmt.Sprintf("short url %q deleted", shortCode))

	return url, nil
}

// SetActive toggles the activation flag and returns the updated record.
func (s *URLService) SetActive(ctx context.Context, shortCode string, isActive bool) (*models.URL, error) {
	const op = "service.URLService.SetActive"

	url, err := s.repo.SetActive(ctx, shortCode, isActive)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update url status: %w", op, err)
	}

	_ = s.logger.Log(ctx, logging.StackBackend, logging.LevelInfo, "service",
		fmt.Sprintf("short url %q active=%t", shortCode, isActive))

	return url, nil
}

// CleanupExpired removes expired records. It backs the optional sweep the
// application may schedule; nothing in the core drives it.
func (s *URLService) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "service.URLService.CleanupExpired"

	deleted, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: failed to cleanup expired urls: %w", op, err)
	}

	return deleted, nil
}

// sanitizeURL trims the input and prepends http:// when no scheme is
// present, then requires an absolute http/https URL.
func sanitizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	return u.String(), nil
}
