package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/avolkov/shortly/internal/database"
	"github.com/avolkov/shortly/internal/models"
)

type urlRecord struct {
	ID              int64        `db:"id"`
	ShortCode       string       `db:"short_code"`
	OriginalURL     string       `db:"original_url"`
	ValidityMinutes int64        `db:"validity_minutes"`
	Clicks          int64        `db:"clicks"`
	IsActive        bool         `db:"is_active"`
	CreatedAt       time.Time    `db:"created_at"`
	ExpiresAt       time.Time    `db:"expires_at"`
	LastAccessedAt  sql.NullTime `db:"last_accessed_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	url := &models.URL{
		ID:              r.ID,
		ShortCode:       r.ShortCode,
		OriginalURL:     r.OriginalURL,
		ValidityMinutes: r.ValidityMinutes,
		Clicks:          r.Clicks,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}

	if r.LastAccessedAt.Valid {
		t := r.LastAccessedAt.Time
		url.LastAccessedAt = &t
	}

	return url
}

// sortColumns whitelists the sortable columns for List queries.
var sortColumns = map[string]string{
	database.SortByCreatedAt:      "created_at",
	database.SortByExpiresAt:      "expires_at",
	database.SortByClicks:         "clicks",
	database.SortByLastAccessedAt: "last_accessed_at",
	database.SortByShortCode:      "short_code",
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts a new url record. Uniqueness of the short code is enforced
// by the store's unique index; a violation maps to database.ErrShortCodeExists.
func (r *URLRepository) Create(ctx context.Context, params database.CreateURLParams) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, validity_minutes, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, params.ShortCode, params.OriginalURL, params.ValidityMinutes, params.ExpiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByShortCode retrieves a record regardless of its active state.
// Admin and stats paths use this unrestricted lookup.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetActiveByShortCode retrieves a record only if it is active. The active
// filter is explicit here rather than applied implicitly to every read.
func (r *URLRepository) GetActiveByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetActiveByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1 AND is_active = TRUE`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// FindActiveByOriginalURL retrieves the newest active, unexpired record
// holding the given original URL, for dedup on shortening.
func (r *URLRepository) FindActiveByOriginalURL(ctx context.Context, originalURL string, now time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.FindActiveByOriginalURL"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE original_url = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, rec, query, originalURL, now)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to find url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// CodeInUse reports whether any record, regardless of state, holds the code.
func (r *URLRepository) CodeInUse(ctx context.Context, shortCode string) (bool, error) {
	const op = "database.postgres.URLRepository.CodeInUse"

	var inUse bool
	query := `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)`

	if err := r.db.GetContext(ctx, &inUse, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to check short code: %w", op, err)
	}

	return inUse, nil
}

// RecordVisit atomically increments the click counter and stamps the access
// time of an active, unexpired record. A miss returns database.ErrURLNotFound;
// the caller disambiguates missing from expired.
func (r *URLRepository) RecordVisit(ctx context.Context, shortCode string, now time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.RecordVisit"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET clicks = clicks + 1, last_accessed_at = $2
		WHERE short_code = $1 AND is_active = TRUE AND expires_at > $2
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, now)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	return rec.ToURL(), nil
}

// List returns one page of records plus the total count matching the filter.
func (r *URLRepository) List(ctx context.Context, params database.ListURLsParams) ([]*models.URL, int64, error) {
	const op = "database.postgres.URLRepository.List"

	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = "created_at"
	}

	order := "DESC"
	if params.SortOrder == database.SortOrderAsc {
		order = "ASC"
	}

	filter := "WHERE expires_at > $1"
	args := []any{params.Now}
	if params.IncludeExpired {
		filter = ""
		args = nil
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM urls %s`, filter)

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to count url records: %w", op, err)
	}

	offset := (params.Page - 1) * params.Limit
	query := fmt.Sprintf(`SELECT * FROM urls %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		filter, column, order, params.Limit, offset)

	var recs []urlRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].ToURL())
	}

	return urls, total, nil
}

// Delete removes a record unconditionally and returns its last state.
func (r *URLRepository) Delete(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Delete"

	rec := new(urlRecord)
	query := `DELETE FROM urls WHERE short_code = $1 RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to delete url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// SetActive toggles the administrative activation flag.
func (r *URLRepository) SetActive(ctx context.Context, shortCode string, isActive bool) (*models.URL, error) {
	const op = "database.postgres.URLRepository.SetActive"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET is_active = $2
		WHERE short_code = $1
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, isActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// DeleteExpired removes records past their expiry and reports how many.
func (r *URLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "database.postgres.URLRepository.DeleteExpired"

	res, err := r.db.ExecContext(ctx, `DELETE FROM urls WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired url records: %w", op, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}

	return deleted, nil
}
