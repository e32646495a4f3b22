package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLogServer(t *testing.T) (*httptest.Server, *[]Entry) {
	t.Helper()

	var received []Entry

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var entry Entry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
		received = append(received, entry)

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, &received
}

func TestClient_Log(t *testing.T) {
	ctx := context.Background()

	t.Run("ships valid entry", func(t *testing.T) {
		server, received := setupLogServer(t)
		client := New(server.URL)

		err := client.Log(ctx, StackBackend, LevelError, "handler", "received string, expected bool")

		require.NoError(t, err)
		require.Len(t, *received, 1)

		entry := (*received)[0]
		assert.Equal(t, StackBackend, entry.Stack)
		assert.Equal(t, LevelError, entry.Level)
		assert.Equal(t, "handler", entry.Package)
		assert.Equal(t, "received string, expected bool", entry.Message)
		assert.False(t, entry.Timestamp.IsZero())
	})

	t.Run("sends bearer token", func(t *testing.T) {
		var gotAuth string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := New(server.URL, WithToken("secret"))

		err := client.Log(ctx, StackBackend, LevelInfo, "service", "started")

		require.NoError(t, err)
		assert.Equal(t, "Bearer secret", gotAuth)
	})

	t.Run("invalid stack", func(t *testing.T) {
		server, received := setupLogServer(t)
		client := New(server.URL)

		err := client.Log(ctx, Stack("sideways"), LevelInfo, "handler", "msg")

		assert.ErrorIs(t, err, ErrInvalidStack)
		assert.Empty(t, *received)
	})

	t.Run("invalid level", func(t *testing.T) {
		server, received := setupLogServer(t)
		client := New(server.URL)

		err := client.Log(ctx, StackBackend, Level("loud"), "handler", "msg")

		assert.ErrorIs(t, err, ErrInvalidLevel)
		assert.Empty(t, *received)
	})

	t.Run("frontend package rejected for backend stack", func(t *testing.T) {
		server, received := setupLogServer(t)
		client := New(server.URL)

		err := client.Log(ctx, StackBackend, LevelInfo, "component", "msg")

		assert.ErrorIs(t, err, ErrInvalidPackage)
		assert.Empty(t, *received)
	})

	t.Run("shared package accepted for both stacks", func(t *testing.T) {
		server, received := setupLogServer(t)
		client := New(server.URL)

		require.NoError(t, client.Log(ctx, StackBackend, LevelInfo, "auth", "msg"))
		require.NoError(t, client.Log(ctx, StackFrontend, LevelInfo, "auth", "msg"))
		assert.Len(t, *received, 2)
	})

	t.Run("delivery failure returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := New(server.URL)

		err := client.Log(ctx, StackBackend, LevelInfo, "handler", "msg")

		assert.Error(t, err)
	})

	t.Run("delivery failure suppressed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := New(server.URL, WithSuppressErrors(true))

		err := client.Log(ctx, StackBackend, LevelInfo, "handler", "msg")

		assert.NoError(t, err)
		assert.Len(t, client.Recent(), 1, "entry is still recorded locally")
	})

	t.Run("validation failure not suppressed", func(t *testing.T) {
		server, _ := setupLogServer(t)
		client := New(server.URL, WithSuppressErrors(true))

		err := client.Log(ctx, Stack("sideways"), LevelInfo, "handler", "msg")

		assert.ErrorIs(t, err, ErrInvalidStack)
	})
}

func TestClient_Recent(t *testing.T) {
	ctx := context.Background()

	t.Run("empty buffer", func(t *testing.T) {
		server, _ := setupLogServer(t)
		client := New(server.URL)

		assert.Empty(t, client.Recent())
	})

	t.Run("partial buffer keeps insertion order", func(t *testing.T) {
		server, _ := setupLogServer(t)
		client := New(server.URL, WithBufferSize(5))

		for i := 0; i < 3; i++ {
			require.NoError(t, client.Log(ctx, StackBackend, LevelInfo, "handler", fmt.Sprintf("msg %d", i)))
		}

		recent := client.Recent()
		require.Len(t, recent, 3)
		assert.Equal(t, "msg 0", recent[0].Message)
		assert.Equal(t, "msg 2", recent[2].Message)
	})

	t.Run("full buffer evicts oldest first", func(t *testing.T) {
		server, _ := setupLogServer(t)
		client := New(server.URL, WithBufferSize(3))

		for i := 0; i < 5; i++ {
			require.NoError(t, client.Log(ctx, StackBackend, LevelInfo, "handler", fmt.Sprintf("msg %d", i)))
		}

		recent := client.Recent()
		require.Len(t, recent, 3)
		assert.Equal(t, "msg 2", recent[0].Message)
		assert.Equal(t, "msg 3", recent[1].Message)
		assert.Equal(t, "msg 4", recent[2].Message)
	})
}
