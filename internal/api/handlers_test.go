package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/internal/recommender"
	"github.com/yegors/flightrec/internal/scoring"
	"github.com/yegors/flightrec/internal/upstream"
	"github.com/yegors/flightrec/pkg/logger"
)

type fakeRunner struct {
	interval time.Duration
	got      time.Duration
	err      error
}

func (f *fakeRunner) Interval() time.Duration { return f.interval }

func (f *fakeRunner) RunInterval(_ context.Context, interval time.Duration) (*recommender.Result, error) {
	f.got = interval
	if f.err != nil {
		return nil, f.err
	}
	return &recommender.Result{
		RunID: "run-1",
		Ranked: []scoring.Scored{{
			Candidate: scoring.Candidate{
				Flight: flight.Flight{
					ICAO24: "3c6444", Callsign: "DLH123",
					EstDepartureAirport: "EDDF", EstArrivalAirport: "LOWW",
					FirstSeen: 1_700_000_000, LastSeen: 1_700_004_500,
				},
				Aircraft: &aircraft.Record{Registration: "D-AIUA", Typecode: "A320"},
			},
			Score: 12,
		}},
	}, nil
}

func serve(t *testing.T, runner Runner, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(runner, logger.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetReportText(t *testing.T) {
	runner := &fakeRunner{interval: 2 * time.Hour}
	rec := serve(t, runner, "/report")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", rec.Header().Get("X-Run-ID"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "  12:\tEDDF - LOWW\t2213Z\tDLH123\tD-AIUA (A320)\n", rec.Body.String())
	assert.Equal(t, 2*time.Hour, runner.got)
}

func TestGetReportJSONWithHours(t *testing.T) {
	runner := &fakeRunner{interval: 2 * time.Hour}
	rec := serve(t, runner, "/report?format=json&hours=0.5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30*time.Minute, runner.got)

	var doc struct {
		RunID   string `json:"run_id"`
		Flights []struct {
			Callsign string  `json:"callsign"`
			Score    float64 `json:"score"`
		} `json:"flights"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	require.Len(t, doc.Flights, 1)
	assert.Equal(t, 12.0, doc.Flights[0].Score)
}

func TestGetReportBadRequest(t *testing.T) {
	for _, target := range []string{
		"/report?hours=abc",
		"/report?hours=0",
		"/report?hours=-1",
		"/report?hours=100",
		"/report?format=xml",
	} {
		rec := serve(t, &fakeRunner{interval: time.Hour}, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetReportUpstreamUnavailable(t *testing.T) {
	runner := &fakeRunner{interval: time.Hour, err: fmt.Errorf("failed to fetch flights: %w", upstream.ErrUnavailable)}
	rec := serve(t, runner, "/report")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	runner.err = errors.New("boom")
	rec = serve(t, runner, "/report")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetHealth(t *testing.T) {
	rec := serve(t, &fakeRunner{interval: 90 * time.Minute}, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.5, body["interval_hours"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, &fakeRunner{interval: time.Hour}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetReportSharedCancellationIsAnError(t *testing.T) {
	// the run failed with context.Canceled but this request is still live
	runner := &fakeRunner{interval: time.Hour, err: fmt.Errorf("failed to fetch flights: %w", context.Canceled)}
	rec := serve(t, runner, "/report")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "context canceled")
}

func TestGetReportCanceledRequestWritesNothing(t *testing.T) {
	runner := &fakeRunner{interval: time.Hour, err: context.Canceled}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/report", nil).WithContext(ctx)
	NewRouter(runner, logger.NewNop()).ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
}
