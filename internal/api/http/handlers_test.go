package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/avolkov/shortly/internal/database"
	"github.com/avolkov/shortly/internal/models"
	"github.com/avolkov/shortly/internal/service"
	"github.com/avolkov/shortly/pkg/response"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) Shorten(ctx context.Context, params service.ShortenParams) (*service.ShortenResult, error) {
	args := s.Called(ctx, params)
	res, _ := args.Get(0).(*service.ShortenResult)
	return res, args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, shortCode string) (*models.URL, error) {
	args := s.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Stats(ctx context.Context, shortCode string) (*models.URL, error) {
	args := s.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) List(ctx context.Context, params service.ListParams) (*service.ListResult, error) {
	args := s.Called(ctx, params)
	res, _ := args.Get(0).(*service.ListResult)
	return res, args.Error(1)
}

func (s *MockURLService) Delete(ctx context.Context, shortCode string) (*models.URL, error) {
	args := s.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) SetActive(ctx context.Context, shortCode string, isActive bool) (*models.URL, error) {
	args := s.Called(ctx, shortCode, isActive)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

type HandlersTestSuite struct {
	suite.Suite
	logger     *httplog.Logger
	urlSvcMock *MockURLService
	server     *httptest.Server
	e          *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	router := NewRouter(suite.logger, suite.urlSvcMock)
	suite.server = httptest.NewServer(router)

	// Redirects are asserted directly, so the client must not follow them.
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

func (suite *HandlersTestSuite) TestPing() {
	suite.Run("success", func() {
		suite.e.GET("/ping").
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *HandlersTestSuite) TestShortenURL() {
	const path = "/shorten"

	testURL := &models.URL{
		ID:              1,
		ShortCode:       "Ab3xZ",
		OriginalURL:     "http://example.com/path",
		ValidityMinutes: 30,
		IsActive:        true,
		CreatedAt:       time.Now(),
		ExpiresAt:       time.Now().Add(30 * time.Minute),
	}

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("invalid request body", func() {
		suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.BadRequestResponse.Message)
	})

	suite.Run("missing url", func() {
		suite.e.POST(path).
			WithJSON(map[string]any{"validity": 30}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Validation Error")
	})

	suite.Run("invalid url", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.ShortenParams{URL: "not a url"}).
			Return(nil, service.ErrInvalidURL)

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "not a url"}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Validation Error")
	})

	suite.Run("custom code conflict", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.ShortenParams{URL: "http://example.com", CustomCode: "abc"}).
			Return(nil, service.ErrShortCodeTaken)

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "http://example.com", "shortcode": "abc"}).
			Expect().
			Status(http.StatusConflict).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ShortCodeConflictResponse.Message)
	})

	suite.Run("generation exhaustion", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, mock.Anything).
			Return(nil, service.ErrMaxRetriesExceeded)

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "http://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("created", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.ShortenParams{URL: "example.com/path", ValidityMinutes: 30}).
			Return(&service.ShortenResult{URL: testURL}, nil)

		data := suite.e.POST(path).
			WithJSON(map[string]any{"url": "example.com/path", "validity": 30}).
			Expect().
			Status(http.StatusCreated).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.HasValue("short_code", "Ab3xZ")
		data.HasValue("original_url", "http://example.com/path")
		data.HasValue("validity", 30)
		data.HasValue("existing", false)
		data.Value("short_link").String().HasSuffix("/Ab3xZ")
	})

	suite.Run("existing mapping returned", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.ShortenParams{URL: "example.com/path"}).
			Return(&service.ShortenResult{URL: testURL, Existing: true}, nil)

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "example.com/path"}).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object().
			HasValue("existing", true)
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	suite.Run("permanent redirect", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "Ab3xZ").
			Return(&models.URL{ShortCode: "Ab3xZ", OriginalURL: "http://example.com/path"}, nil)

		suite.e.GET("/Ab3xZ").
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("http://example.com/path")
	})

	suite.Run("unknown short code", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "nope1").
			Return(nil, database.ErrURLNotFound)

		suite.e.GET("/nope1").
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("expired short code", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "old01").
			Return(nil, service.ErrURLExpired)

		suite.e.GET("/old01").
			Expect().
			Status(http.StatusGone).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.LinkExpiredResponse.Message)
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	suite.Run("success with derived fields", func() {
		lastAccessed := time.Now().Add(-time.Minute)
		suite.urlSvcMock.
			On("Stats", mock.Anything, "Ab3xZ").
			Return(&models.URL{
				ID:              1,
				ShortCode:       "Ab3xZ",
				OriginalURL:     "http://example.com",
				ValidityMinutes: 30,
				Clicks:          7,
				IsActive:        true,
				CreatedAt:       time.Now().Add(-10 * time.Minute),
				ExpiresAt:       time.Now().Add(20 * time.Minute),
				LastAccessedAt:  &lastAccessed,
			}, nil)

		data := suite.e.GET("/api/stats/Ab3xZ").
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.HasValue("short_code", "Ab3xZ")
		data.HasValue("clicks", 7)
		data.HasValue("is_expired", false)
		data.Value("time_remaining_seconds").Number().Gt(0)
		data.ContainsKey("last_accessed_at")
	})

	suite.Run("expired record still visible", func() {
		suite.urlSvcMock.
			On("Stats", mock.Anything, "old01").
			Return(&models.URL{
				ShortCode: "old01",
				IsActive:  true,
				ExpiresAt: time.Now().Add(-time.Hour),
			}, nil)

		data := suite.e.GET("/api/stats/old01").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Object()

		data.HasValue("is_expired", true)
		data.HasValue("time_remaining_seconds", 0)
	})

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Stats", mock.Anything, "nope1").
			Return(nil, database.ErrURLNotFound)

		suite.e.GET("/api/stats/nope1").
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError)
	})
}

func (suite *HandlersTestSuite) TestListURLs() {
	const path = "/api/urls"

	suite.Run("success with pagination metadata", func() {
		suite.urlSvcMock.
			On("List", mock.Anything, service.ListParams{Page: 2, Limit: 10, IncludeExpired: false}).
			Return(&service.ListResult{
				URLs:  []*models.URL{{ShortCode: "a"}, {ShortCode: "b"}},
				Total: 25,
				Page:  2,
				Limit: 10,
			}, nil)

		data := suite.e.GET(path).
			WithQuery("page", 2).
			WithQuery("limit", 10).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.Value("urls").Array().Length().IsEqual(2)

		pagination := data.Value("pagination").Object()
		pagination.HasValue("page", 2)
		pagination.HasValue("total", 25)
		pagination.HasValue("total_pages", 3)
		pagination.HasValue("has_next_page", true)
		pagination.HasValue("has_prev_page", true)
	})

	suite.Run("unparsable page", func() {
		suite.e.GET(path).
			WithQuery("page", "abc").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("unparsable include_expired", func() {
		suite.e.GET(path).
			WithQuery("include_expired", "maybe").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError)
	})
}

func (suite *HandlersTestSuite) TestDeleteURL() {
	suite.Run("success", func() {
		suite.urlSvcMock.
			On("Delete", mock.Anything, "Ab3xZ").
			Return(&models.URL{ShortCode: "Ab3xZ", Clicks: 3}, nil)

		suite.e.DELETE("/api/urls/Ab3xZ").
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object().
			HasValue("short_code", "Ab3xZ")
	})

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Delete", mock.Anything, "nope1").
			Return(nil, database.ErrURLNotFound)

		suite.e.DELETE("/api/urls/nope1").
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError)
	})
}

func (suite *HandlersTestSuite) TestSetURLStatus() {
	suite.Run("empty request body", func() {
		suite.e.PATCH("/api/urls/Ab3xZ/status").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("non-boolean is_active", func() {
		suite.e.PATCH("/api/urls/Ab3xZ/status").
			WithJSON(map[string]string{"is_active": "yes"}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("missing is_active", func() {
		suite.e.PATCH("/api/urls/Ab3xZ/status").
			WithJSON(map[string]any{}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("error", "Validation Error")
	})

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("SetActive", mock.Anything, "nope1", false).
			Return(nil, database.ErrURLNotFound)

		suite.e.PATCH("/api/urls/nope1/status").
			WithJSON(map[string]bool{"is_active": false}).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("SetActive", mock.Anything, "Ab3xZ", false).
			Return(&models.URL{ShortCode: "Ab3xZ", IsActive: false}, nil)

		suite.e.PATCH("/api/urls/Ab3xZ/status").
			WithJSON(map[string]bool{"is_active": false}).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object().
			HasValue("is_active", false)
	})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
