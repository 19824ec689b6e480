package remote

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, testLogger())
}

func TestFetchResult(t *testing.T) {
	t.Run("returns payload and sends bearer key", func(t *testing.T) {
		var gotAuth, gotPath string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"operation_id":"op_1","optimal_value":0.0001}`))
		})

		payload, err := c.FetchResult(context.Background(), "mn_key", "op_1")
		require.NoError(t, err)
		assert.Equal(t, "Bearer mn_key", gotAuth)
		assert.Equal(t, "/result/op_1", gotPath)
		assert.Equal(t, "op_1", payload["operation_id"])
		assert.Equal(t, 0.0001, payload["optimal_value"])
	})

	t.Run("404 maps to nil not error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such operation", http.StatusNotFound)
		})

		payload, err := c.FetchResult(context.Background(), "mn_key", "op_missing")
		require.NoError(t, err)
		assert.Nil(t, payload)
	})

	t.Run("5xx surfaces a ServiceError with status and body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "optimizer on fire", http.StatusInternalServerError)
		})

		_, err := c.FetchResult(context.Background(), "mn_key", "op_1")
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, http.StatusInternalServerError, svcErr.Status)
		assert.Contains(t, svcErr.Body, "optimizer on fire")
	})

	t.Run("operation id is path escaped", func(t *testing.T) {
		var gotRawPath string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotRawPath = r.URL.EscapedPath()
			_, _ = w.Write([]byte(`{}`))
		})

		_, err := c.FetchResult(context.Background(), "mn_key", "op:1")
		require.NoError(t, err)
		assert.Equal(t, "/result/op:1", gotRawPath)
	})
}

func TestFetchStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status/op_2", r.URL.Path)
		_, _ = w.Write([]byte(`{"operation_id":"op_2","status":"running"}`))
	})

	payload, err := c.FetchStatus(context.Background(), "mn_key", "op_2")
	require.NoError(t, err)
	assert.Equal(t, "running", payload["status"])
}

func TestListRecent(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "25", r.URL.Query().Get("limit"))
			assert.Equal(t, "0", r.URL.Query().Get("offset"))
			_, _ = w.Write([]byte(`[{"operation_id":"a"},{"operation_id":"b"}]`))
		})

		items, err := c.ListRecent(context.Background(), "mn_key", 25, 0)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "a", items[0]["operation_id"])
	})

	t.Run("operations wrapper", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"operations":[{"operation_id":"a"}]}`))
		})

		items, err := c.ListRecent(context.Background(), "mn_key", 10, 0)
		require.NoError(t, err)
		require.Len(t, items, 1)
	})

	t.Run("results wrapper", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[{"operation_id":"a"},{"operation_id":"b"},{"operation_id":"c"}]}`))
		})

		items, err := c.ListRecent(context.Background(), "mn_key", 10, 0)
		require.NoError(t, err)
		require.Len(t, items, 3)
	})

	t.Run("malformed body degrades to empty slice", func(t *testing.T) {
		for _, body := range []string{``, `not json`, `{"unexpected":"shape"}`, `null`, `42`} {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			items, err := c.ListRecent(context.Background(), "mn_key", 10, 0)
			require.NoError(t, err, body)
			assert.Empty(t, items, body)
		}
	})

	t.Run("5xx still errors", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		})

		_, err := c.ListRecent(context.Background(), "mn_key", 10, 0)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, http.StatusBadGateway, svcErr.Status)
	})
}
