package database

import "time"

// Sort fields accepted by ListURLsParams.SortBy.
const (
	SortByCreatedAt      = "created_at"
	SortByExpiresAt      = "expires_at"
	SortByClicks         = "clicks"
	SortByLastAccessedAt = "last_accessed_at"
	SortByShortCode      = "short_code"
)

const (
	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

// CreateURLParams holds the fields of a new short URL record.
type CreateURLParams struct {
	ShortCode       string
	OriginalURL     string
	ValidityMinutes int64
	ExpiresAt       time.Time
}

// ListURLsParams controls pagination, ordering and expiry filtering of list
// queries. Now is the reference time the expiry filter is evaluated against.
type ListURLsParams struct {
	Page           int
	Limit          int
	SortBy         string
	SortOrder      string
	IncludeExpired bool
	Now            time.Time
}
