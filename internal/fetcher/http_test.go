package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSource(baseURL string) *HTTPSource {
	return NewHTTPSource(HTTPOptions{
		BaseURL:    baseURL,
		MaxRetries: 1,
		RatePerSec: 1000,
		Burst:      1000,
		Timeout:    5 * time.Second,
	})
}

func TestFetchRunLog_ConsolidatedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/run-1/consolidated", r.URL.Path)
		w.Write([]byte(`[{"prompt_type": "ScoringPrompt", "decision_key": "plausibel"}]`))
	}))
	defer srv.Close()

	entries, err := newTestSource(srv.URL).FetchRunLog(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "plausibel", entries[0].DecisionKey)
}

func TestFetchRunLog_FallsBackToDetail(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/runs/run-1/consolidated" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[{"prompt_type": "MetaPrompt"}]`))
	}))
	defer srv.Close()

	entries, err := newTestSource(srv.URL).FetchRunLog(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{
		"/api/runs/run-1/consolidated",
		"/api/runs/run-1/detail",
	}, paths)
}

func TestFetchRunLog_WrappedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entries": [{"prompt_type": "ExtractionPrompt"}]}`))
	}))
	defer srv.Close()

	entries, err := newTestSource(srv.URL).FetchRunLog(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ExtractionPrompt", entries[0].PromptType)
}

func TestFetchRunLog_BothEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).FetchRunLog(context.Background(), "run-1")
	assert.Error(t, err)
}

func TestFetchRunLog_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPOptions{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RatePerSec: 1000,
		Burst:      1000,
	})

	entries, err := src.FetchRunLog(context.Background(), "run-1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchRunLog_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPOptions{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RatePerSec: 1000,
		Burst:      1000,
	})

	_, err := src.FetchRunLog(context.Background(), "run-1")
	assert.Error(t, err)
	// One call per endpoint, no retries.
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchRunLog_UnparseablePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"nur ein string"`))
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).FetchRunLog(context.Background(), "run-1")
	assert.Error(t, err)
}
