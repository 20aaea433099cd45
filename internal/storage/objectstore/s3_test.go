package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundation_site/internal/domain"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *S3 {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewS3(context.Background(), Config{
		Endpoint:     srv.URL,
		Bucket:       "gallery",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
		PublicURL:    "https://cdn.example.org",
		MaxAttempts:  1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestNewS3_RequiresBucketAndCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewS3(context.Background(), Config{AccessKey: "k", SecretKey: "s"}, logger)
	assert.Error(t, err)

	_, err = NewS3(context.Background(), Config{Bucket: "b"}, logger)
	assert.Error(t, err)
}

func TestS3_Put(t *testing.T) {
	var gotPath, gotType, gotBody string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	})

	url, err := store.Put(context.Background(), "projects/p1/img.jpg", "image/jpeg", strings.NewReader("jpeg"), 4)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/projects/p1/img.jpg", url)
	assert.Equal(t, "PUT /gallery/projects/p1/img.jpg", gotPath)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "jpeg", gotBody)
}

func TestS3_PutRejectsOversized(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := store.Put(context.Background(), "k", "image/png", strings.NewReader(""), MaxObjectSize+1)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestS3_Delete(t *testing.T) {
	var gotPath string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, store.Delete(context.Background(), "projects/p1/img.jpg"))
	assert.Equal(t, "DELETE /gallery/projects/p1/img.jpg", gotPath)
}

func TestS3_ErrorKinds(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	})

	err := store.Delete(context.Background(), "k")
	assert.True(t, errors.Is(err, domain.ErrForbidden), "got %v", err)
}
