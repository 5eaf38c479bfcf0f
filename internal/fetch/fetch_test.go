package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ConditionalAndFallback(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("Owner,Subject,Start,End\n"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), srv.Client())
	ctx := context.Background()

	first, err := f.Get(ctx, srv.URL+"/schedule.csv")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.True(t, first.Changed)
	assert.Equal(t, "Owner,Subject,Start,End\n", string(first.Body))

	second, err := f.Get(ctx, srv.URL+"/schedule.csv")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Body, second.Body)

	down.Store(true)
	third, err := f.Get(ctx, srv.URL+"/schedule.csv")
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, first.Body, third.Body)
	assert.EqualValues(t, 3, hits.Load())
}

func TestGet_ErrorWithoutCache(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(t.TempDir(), srv.Client()).Get(context.Background(), srv.URL+"/x.csv")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com/a/b.csv?token=1"))
	assert.Equal(t, "url://...(redacted)", RedactURL("not a url"))
}
