package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junyuhe/scholarbot/backend/internal/config"
	"github.com/junyuhe/scholarbot/backend/internal/quota"
	"github.com/junyuhe/scholarbot/backend/internal/retry"
)

func testConfig(baseURL string) config.SearchConfig {
	return config.SearchConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		MaxResults:     10,
		RequestTimeout: 2 * time.Second,
		QuotaLimit:     100,
		QuotaWindow:    time.Hour,
	}
}

func testGuard(limit int) *quota.Guard {
	return quota.NewGuard(map[quota.Provider]quota.Limit{
		quota.ProviderSearch: {Calls: limit, Window: time.Hour},
	})
}

func newTestGateway(cfg config.SearchConfig, guard *quota.Guard) *Gateway {
	g := NewGateway(cfg, guard)
	g.policy = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	return g
}

const providerBody = `{"results":[
	{"title":"Paris","url":"https://en.example/paris","snippet":"Capital of France"},
	{"title":"","url":"https://en.example/untitled","snippet":"missing title"},
	{"title":"No snippet","url":"https://en.example/nosnippet","snippet":""},
	{"title":"  Lyon <b>guide</b> ","url":"https://en.example/lyon","snippet":"Second   city\tof France"}
]}`

func TestSearchNormalizesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(providerBody))
	}))
	defer srv.Close()

	g := newTestGateway(testConfig(srv.URL), testGuard(10))
	items, err := g.Search(context.Background(), "capital of France")
	require.NoError(t, err)

	// Results missing title or snippet are dropped, not defaulted. Rank keeps
	// the provider position even when earlier results were dropped.
	require.Len(t, items, 2)
	assert.Equal(t, "Paris", items[0].Title)
	assert.Equal(t, 1, items[0].Rank)
	assert.Equal(t, "Lyon guide", items[1].Title)
	assert.Equal(t, "Second city of France", items[1].Snippet)
	assert.Equal(t, 4, items[1].Rank)
}

func TestSearchCapsResultCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"title":"a","url":"https://1.example","snippet":"s"},
			{"title":"b","url":"https://2.example","snippet":"s"},
			{"title":"c","url":"https://3.example","snippet":"s"}
		]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxResults = 2
	g := newTestGateway(cfg, testGuard(10))

	items, err := g.Search(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"results":[{"title":"a","url":"https://1.example","snippet":"s"}]}`))
	}))
	defer srv.Close()

	guard := testGuard(10)
	g := newTestGateway(testConfig(srv.URL), guard)

	items, err := g.Search(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), calls.Load())
	// Only the logical call consumes quota, not each retry.
	assert.Equal(t, 9, guard.Remaining(quota.ProviderSearch))
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := newTestGateway(testConfig(srv.URL), testGuard(10))

	_, err := g.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchGivesUpAfterBoundedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := newTestGateway(testConfig(srv.URL), testGuard(10))

	_, err := g.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchQuotaDenialMakesNoAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	guard := testGuard(1)
	require.True(t, guard.TryReserve(quota.ProviderSearch))
	g := newTestGateway(testConfig(srv.URL), guard)

	_, err := g.Search(context.Background(), "query")
	require.ErrorIs(t, err, quota.ErrExhausted)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSearchRequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://unused.example")
	cfg.APIKey = ""
	g := newTestGateway(cfg, testGuard(10))

	_, err := g.Search(context.Background(), "query")
	require.Error(t, err)
}
