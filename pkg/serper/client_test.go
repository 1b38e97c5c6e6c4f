package serper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expo-cli/internal/resilience"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, `"Acme Graphics" acmegraphics.com company size`, body.Q)
		assert.Equal(t, 5, body.Num)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Organic: []OrganicResult{
				{
					Title:    "Acme Graphics | LinkedIn",
					Link:     "https://www.linkedin.com/company/acme-graphics",
					Snippet:  "Acme Graphics has 51-200 employees.",
					Position: 1,
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), `"Acme Graphics" acmegraphics.com company size`, 5)

	require.NoError(t, err)
	require.Len(t, resp.Organic, 1)
	assert.Equal(t, "Acme Graphics | LinkedIn", resp.Organic[0].Title)
	assert.Equal(t, "https://www.linkedin.com/company/acme-graphics", resp.Organic[0].Link)
	assert.Equal(t, 1, resp.Organic[0].Position)
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{Organic: nil})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "nonexistent corp", 5)

	require.NoError(t, err)
	assert.Empty(t, resp.Organic)
}

func TestSearch_ClientError_NotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "Unauthorized"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "test", 5)

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, resilience.IsTransient(err))
}

func TestSearch_RateLimited_Transient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "Too many requests"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "test", 5)

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
}

func TestSearch_ServerError_Transient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "test", 5)

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Search(ctx, "test", 5)

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestSearch_RateLimiterSpacesCalls(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{})
	}))
	defer srv.Close()

	// Generous rate so the test stays fast; just proves the limiter path runs.
	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(1000))
	for i := 0; i < 3; i++ {
		_, err := client.Search(context.Background(), "q", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}
