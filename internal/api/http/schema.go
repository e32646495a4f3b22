package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/avolkov/shortly/internal/models"
	"github.com/avolkov/shortly/internal/service"
)

// shortenRequest represents the request payload for creating a shortened URL.
// URL format, validity range and custom code shape are enforced by the
// service; the validator covers presence and basic bounds.
type shortenRequest struct {
	URL       string `json:"url" validate:"required"`
	Validity  int64  `json:"validity" validate:"omitempty,min=1,max=525600"`
	ShortCode string `json:"shortcode" validate:"omitempty,min=3,max=20"`
}

// statusRequest represents the request payload for toggling activation.
// The pointer distinguishes a missing field from an explicit false.
type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// shortenResponse represents the response payload for a shorten operation.
type shortenResponse struct {
	ShortLink   string    `json:"short_link"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Validity    int64     `json:"validity"`
	ExpiresAt   time.Time `json:"expires_at"`
	Existing    bool      `json:"existing"`
}

func toShortenResponse(r *http.Request, res *service.ShortenResult) shortenResponse {
	return shortenResponse{
		ShortLink:   shortLink(r, res.URL.ShortCode),
		ShortCode:   res.URL.ShortCode,
		OriginalURL: res.URL.OriginalURL,
		Validity:    res.URL.ValidityMinutes,
		ExpiresAt:   res.URL.ExpiresAt,
		Existing:    res.Existing,
	}
}

// urlResponse represents the public fields of a URL record.
type urlResponse struct {
	ID             int64      `json:"id"`
	ShortCode      string     `json:"short_code"`
	OriginalURL    string     `json:"original_url"`
	Validity       int64      `json:"validity"`
	Clicks         int64      `json:"clicks"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

func toURLResponse(url *models.URL) urlResponse {
	return urlResponse{
		ID:             url.ID,
		ShortCode:      url.ShortCode,
		OriginalURL:    url.OriginalURL,
		Validity:       url.ValidityMinutes,
		Clicks:         url.Clicks,
		IsActive:       url.IsActive,
		CreatedAt:      url.CreatedAt,
		ExpiresAt:      url.ExpiresAt,
		LastAccessedAt: url.LastAccessedAt,
	}
}

// statsResponse adds the derived expiry fields to the record's public fields.
type statsResponse struct {
	urlResponse
	IsExpired            bool  `json:"is_expired"`
	TimeRemainingSeconds int64 `json:"time_remaining_seconds"`
}

func toStatsResponse(url *models.URL, now time.Time) statsResponse {
	return statsResponse{
		urlResponse:          toURLResponse(url),
		IsExpired:            url.IsExpired(now),
		TimeRemainingSeconds: int64(url.TimeRemaining(now).Seconds()),
	}
}

// paginationResponse carries the page metadata of a list response.
type paginationResponse struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int64 `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// listResponse represents the response payload for a list operation.
type listResponse struct {
	URLs       []urlResponse      `json:"urls"`
	Pagination paginationResponse `json:"pagination"`
}

func toListResponse(res *service.ListResult) listResponse {
	urls := make([]urlResponse, 0, len(res.URLs))
	for _, url := range res.URLs {
		urls = append(urls, toURLResponse(url))
	}

	totalPages := (res.Total + int64(res.Limit) - 1) / int64(res.Limit)

	return listResponse{
		URLs: urls,
		Pagination: paginationResponse{
			Page:        res.Page,
			Limit:       res.Limit,
			Total:       res.Total,
			TotalPages:  totalPages,
			HasNextPage: int64(res.Page) < totalPages,
			HasPrevPage: res.Page > 1,
		},
	}
}

// shortLink builds the absolute short URL from the request's own scheme and host.
func shortLink(r *http.Request, shortCode string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return fmt.Sprintf("%s://%s/%s", scheme, r.Host, shortCode)
}
