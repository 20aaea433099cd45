package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 5 * time.Second}, logger)
}

func TestClient_Select(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/projects", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "id,title", q.Get("select"))
		assert.Equal(t, "eq.published", q.Get("status"))
		assert.Equal(t, "in.(a,b)", q.Get("id"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))

		_, _ = w.Write([]byte(`[{"id":"a","title":"Well","content":[{"id":"1","type":"quote","content":{"text":"hi"}}]}]`))
	})

	q := storage.Query{Columns: []string{"id", "title"}}.
		Where("status", "published").
		Filter("id", storage.OpIn, []string{"a", "b"}).
		Page(5, 0)

	var out []domain.Project
	require.NoError(t, client.Select(context.Background(), "projects", q, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Well", out[0].Title)
	assert.Equal(t, &domain.QuoteContent{Text: "hi"}, out[0].Content[0].Content)
}

func TestClient_Insert(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ana", body["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	})

	id, err := client.Insert(context.Background(), "messages", storage.Values{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
}

func TestClient_UpdateAndDelete(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Update(context.Background(), "comments", "c1", storage.Values{"is_approved": true}))
	require.NoError(t, client.Delete(context.Background(), "comments", "c1"))
	assert.Equal(t, []string{"PUT /api/comments/c1", "DELETE /api/comments/c1"}, calls)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrValidation},
		{http.StatusUnauthorized, domain.ErrUnauthenticated},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusConflict, domain.ErrConstraint},
		{http.StatusInternalServerError, domain.ErrTransport},
		{http.StatusServiceUnavailable, domain.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			err := client.Delete(context.Background(), "projects", "p1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_NetworkErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var out []domain.Message
	err := client.Select(context.Background(), "messages", storage.Query{}, &out)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestClient_CancelledIsNotTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out []domain.Message
	err := client.Select(ctx, "messages", storage.Query{}, &out)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, domain.ErrTransport))
}

func TestClient_Increment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/blog_posts/b1/increment", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"column": "views", "by": float64(1)}, body)

		_, _ = w.Write([]byte(`{"value":7}`))
	})

	views, err := client.Increment(context.Background(), "blog_posts", "b1", "views", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), views)

	_, err = client.Increment(context.Background(), "blog_posts", "b1", "views=1", 1)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
