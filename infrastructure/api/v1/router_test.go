package v1_test

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
	v1 "github.com/dupdex/dupdex/infrastructure/api/v1"
	"github.com/dupdex/dupdex/infrastructure/api/v1/dto"
)

type stubRefresher struct {
	result service.RefreshResult
	err    error

	lastRepo  string
	lastForce bool
}

func (s *stubRefresher) Refresh(_ context.Context, repository string, force bool) (service.RefreshResult, error) {
	s.lastRepo = repository
	s.lastForce = force
	return s.result, s.err
}

type stubFinder struct {
	report search.Report
	err    error

	optCount int
}

func (s *stubFinder) Find(_ context.Context, _ string, _ int, opts ...service.FindOption) (search.Report, error) {
	s.optCount = len(opts)
	return s.report, s.err
}

func testReport(t *testing.T) search.Report {
	t.Helper()
	repo, err := issue.ParseRepo("acme/widgets")
	require.NoError(t, err)
	return search.NewReport(repo, 5, []search.Match{
		search.NewMatch(2, "login broken", 0.97),
	})
}

func TestRefreshEndpoint(t *testing.T) {
	refresher := &stubRefresher{}
	router := v1.NewRefreshRouter(refresher, nil).Routes()

	body := strings.NewReader(`{"repo":"acme/widgets","force":true}`)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme/widgets", refresher.lastRepo)
	assert.True(t, refresher.lastForce)

	var resp dto.RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acme/widgets", resp.Repo)
}

func TestRefreshEndpointBadBody(t *testing.T) {
	router := v1.NewRefreshRouter(&stubRefresher{}, nil).Routes()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid repo", service.ErrInvalidRepository, http.StatusBadRequest},
		{"in progress", service.ErrRefreshInProgress, http.StatusConflict},
		{"source down", service.ErrSourceUnavailable, http.StatusBadGateway},
		{"store down", service.ErrStoreUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := v1.NewRefreshRouter(&stubRefresher{err: tt.err}, nil).Routes()

			body := strings.NewReader(`{"repo":"acme/widgets"}`)
			req := httptest.NewRequest(http.MethodPost, "/", body)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDuplicatesEndpoint(t *testing.T) {
	finder := &stubFinder{report: testReport(t)}
	router := v1.NewDuplicatesRouter(finder, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/?repo=acme/widgets&issue_number=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, finder.optCount)

	var resp dto.DuplicatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acme/widgets", resp.Repo)
	assert.Equal(t, 5, resp.Number)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, 2, resp.Matches[0].Number)
	assert.Equal(t, "login broken", resp.Matches[0].Title)
}

func TestDuplicatesEndpointThreshold(t *testing.T) {
	finder := &stubFinder{report: testReport(t)}
	router := v1.NewDuplicatesRouter(finder, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/?repo=acme/widgets&issue_number=5&threshold=0.8", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, finder.optCount)
}

func TestDuplicatesEndpointBadArguments(t *testing.T) {
	router := v1.NewDuplicatesRouter(&stubFinder{}, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/?repo=acme/widgets&issue_number=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/?repo=acme/widgets&issue_number=5&threshold=abc", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicatesEndpointNotIndexed(t *testing.T) {
	router := v1.NewDuplicatesRouter(&stubFinder{err: service.ErrNotIndexed}, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/?repo=acme/widgets&issue_number=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "not indexed")
}
