package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commjoen/siteprobe/internal/metrics"
	"github.com/commjoen/siteprobe/internal/probe"
	"github.com/commjoen/siteprobe/pkg/models"
)

// newTargetSite serves a small site with a robots.txt but no sitemap and
// counts page loads
func newTargetSite(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\n"))
	})
	mux.HandleFunc("/sitemap.xml", http.NotFound)
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt64(hits, 1)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Short</title></head><body><img src="x.png"></body></html>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestEndToEndProbe(t *testing.T) {
	var hits int64
	site := newTargetSite(t, &hits)
	recorder := metrics.NewRecorder()
	api := httptest.NewServer(New(probe.New(probe.WithTimeout(5*time.Second), probe.WithRecorder(recorder)), recorder, nil).Handler())
	defer api.Close()

	resp, err := http.Post(api.URL+"/api/probe", "application/json", strings.NewReader(`{"url":"`+site.URL+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var result models.ProbeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.Equal(t, models.StatusUp, result.Website.Status)
	assert.Equal(t, site.URL, result.Website.URL)
	assert.False(t, result.Website.SSLCertificate.Valid)
	assert.True(t, result.SEO.RobotsTxt)
	assert.False(t, result.SEO.Sitemap)
	assert.Equal(t, []string{
		"Missing meta description",
		"No H1 tag found",
		"1 images missing ALT attributes",
		"Missing viewport meta tag for mobile devices",
	}, result.SEO.Issues)
	assert.Equal(t, []string{
		"Title tag is too short (under 30 characters)",
		"Consider adding a canonical tag",
	}, result.SEO.Recommendations)
	require.NotNil(t, result.SEO.Score)
	assert.Equal(t, 50, *result.SEO.Score)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))

	metricsResp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `siteprobe_probes_total{status="up"} 1`)
}

func TestEndToEndServerError(t *testing.T) {
	var hits int64
	site := newTargetSite(t, &hits)
	api := httptest.NewServer(New(probe.New(probe.WithTimeout(5*time.Second)), nil, nil).Handler())
	defer api.Close()

	resp, err := http.Post(api.URL+"/", "application/json", strings.NewReader(`{"url":"`+site.URL+`/broken"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result models.ProbeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, models.StatusDown, result.Website.Status)
	assert.Equal(t, 100, result.Website.ErrorRate)
	require.NotNil(t, result.Website.HTTPStatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, *result.Website.HTTPStatusCode)
}

func TestEndToEndMissingURL(t *testing.T) {
	api := httptest.NewServer(New(probe.New(), nil, nil).Handler())
	defer api.Close()

	resp, err := http.Post(api.URL+"/", "application/json", strings.NewReader(`{"url":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var got models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "URL is required", got.Error)
}

func TestEndToEndConcurrentProbes(t *testing.T) {
	var hits int64
	site := newTargetSite(t, &hits)
	api := httptest.NewServer(New(probe.New(probe.WithTimeout(5*time.Second)), nil, nil).Handler())
	defer api.Close()

	const n = 5
	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(api.URL+"/api/probe", "application/json", strings.NewReader(`{"url":"`+site.URL+`"}`))
			if err != nil {
				return
			}
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		assert.Equal(t, http.StatusOK, status, "probe %d", i)
	}
	assert.Equal(t, int64(n), atomic.LoadInt64(&hits))
}
