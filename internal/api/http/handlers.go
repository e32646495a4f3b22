package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/avolkov/shortly/internal/database"
	"github.com/avolkov/shortly/internal/service"
	"github.com/avolkov/shortly/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// handleShortenURL handles POST requests to shorten a URL.
//
// The handler validates the payload, calls the shortening service and returns
// the created mapping with 201, or the already stored one with 200 when dedup
// applied. Validation failures come back before any store access.
func handleShortenURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const createdMsg = "The URL has been shortened successfully."
	const existingMsg = "The URL is already shortened; returning the existing short code."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		res, err := svc.Shorten(r.Context(), service.ShortenParams{
			URL:             req.URL,
			ValidityMinutes: req.Validity,
			CustomCode:      req.ShortCode,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidInputResponse("The provided url is not a valid absolute http/https URL."))
			case errors.Is(err, service.ErrInvalidValidity):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidInputResponse("The validity period must be between 1 and 525600 minutes."))
			case errors.Is(err, service.ErrInvalidCustomCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidInputResponse("The shortcode must be 3-20 characters of letters, digits, hyphens or underscores."))
			case errors.Is(err, service.ErrShortCodeTaken):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeConflictResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		if res.Existing {
			render.Status(r, http.StatusOK)
			render.JSON(w, r, response.SuccessResponse(existingMsg, toShortenResponse(r, res)))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(createdMsg, toShortenResponse(r, res)))
	}
}

// handleRedirect handles GET requests on a short code, issuing a permanent
// redirect to the original URL. Unknown and inactive codes report 404;
// expired ones report 410, since the record still exists.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.Resolve(r.Context(), shortCode)
		if err != nil {
			switch {
			case errors.Is(err, database.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.LinkExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusMovedPermanently)
	}
}

// handleGetURLStats handles GET requests for usage statistics of a shortened
// URL. Unlike redirection, inactive and expired records are visible here.
func handleGetURLStats(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.Stats(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toStatsResponse(url, time.Now())))
	}
}

// handleListURLs handles GET requests for a paginated listing of shortened URLs.
func handleListURLs(svc URLService) http.HandlerFunc {
	const op = "api.http.handleListURLs"
	const successMsg = "The URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parseListParams(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		res, err := svc.List(r.Context(), params)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toListResponse(res)))
	}
}

// handleDeleteURL handles DELETE requests, removing the URL unconditionally
// and returning the deleted record's summary.
func handleDeleteURL(svc URLService) http.HandlerFunc {
	const op = "api.http.handleDeleteURL"
	const successMsg = "The URL was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.Delete(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

// handleSetURLStatus handles PATCH requests toggling the activation flag.
// A missing or non-boolean is_active value is a validation error.
func handleSetURLStatus(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleSetURLStatus"
	const successMsg = "The URL status was successfully updated."

	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.SetActive(r.Context(), shortCode, *req.IsActive)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

// parseListParams extracts pagination, sorting and filtering options from the
// query string. Unparsable numeric or boolean values are rejected.
func parseListParams(r *http.Request) (service.ListParams, error) {
	params := service.ListParams{
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return params, fmt.Errorf("invalid page: %q", raw)
		}
		params.Page = page
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return params, fmt.Errorf("invalid limit: %q", raw)
		}
		params.Limit = limit
	}

	if raw := r.URL.Query().Get("include_expired"); raw != "" {
		includeExpired, err := strconv.ParseBool(raw)
		if err != nil {
			return params, fmt.Errorf("invalid include_expired: %q", raw)
		}
		params.IncludeExpired = includeExpired
	}

	return params, nil
}
