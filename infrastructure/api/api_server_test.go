package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/infrastructure/api"
)

type stubRefresher struct {
	result service.RefreshResult
	err    error
}

func (s *stubRefresher) Refresh(context.Context, string, bool) (service.RefreshResult, error) {
	return s.result, s.err
}

type stubFinder struct {
	report search.Report
	err    error
}

func (s *stubFinder) Find(_ context.Context, _ string, _ int, _ ...service.FindOption) (search.Report, error) {
	return s.report, s.err
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	repo, err := issue.ParseRepo("acme/widgets")
	require.NoError(t, err)

	finder := &stubFinder{report: search.NewReport(repo, 5, nil)}
	return api.NewAPIServer(&stubRefresher{}, finder, "test", nil).Handler()
}

func TestHealthEndpoint(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestRoutesMounted(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", strings.NewReader(`{"repo":"acme/widgets"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/duplicates?repo=acme/widgets&issue_number=5", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationHeaderEchoed(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationHeaderGenerated(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonsense", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
