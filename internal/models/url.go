package models

import "time"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code or key associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// ValidityMinutes is the validity period the record was created with.
	ValidityMinutes int64
	// Clicks tracks the number of successful redirects through the short code.
	Clicks int64
	// IsActive is the administrative flag gating redirect eligibility.
	IsActive bool
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt is the timestamp after which the short code no longer resolves.
	ExpiresAt time.Time
	// LastAccessedAt is the timestamp of the most recent successful redirect,
	// or nil if the short code was never resolved.
	LastAccessedAt *time.Time
}

// IsExpired reports whether the record is past its expiry at the given time.
// Expiry is a read-time check; expired records stay queryable until deleted.
func (u *URL) IsExpired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}

// IsValidForRedirect reports whether the record may serve a redirect:
// it must be active and unexpired.
func (u *URL) IsValidForRedirect(now time.Time) bool {
	return u.IsActive && !u.IsExpired(now)
}

// TimeRemaining returns the duration until expiry, or zero if already expired.
func (u *URL) TimeRemaining(now time.Time) time.Duration {
	if d := u.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
