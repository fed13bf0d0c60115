package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yegors/flightrec/internal/recommender"
	"github.com/yegors/flightrec/internal/upstream"
	"github.com/yegors/flightrec/pkg/logger"
)

// MaxReportHours caps the window a single request may ask for
const MaxReportHours = 48.0

// Runner runs the recommendation pipeline
type Runner interface {
	Interval() time.Duration
	RunInterval(ctx context.Context, interval time.Duration) (*recommender.Result, error)
}

// Handler contains the API handlers
type Handler struct {
	runner  Runner
	started time.Time
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(runner Runner, logger *logger.Logger) *Handler {
	return &Handler{
		runner:  runner,
		started: time.Now(),
		logger:  logger.Named("api-handler"),
	}
}

// GetReport runs the pipeline and returns the ranked flights.
// Query parameters: hours (look-back window), format ("text" or "json").
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	interval, err := parseHours(r, h.runner.Interval())
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "text" && format != "json" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be text or json"})
		return
	}

	res, err := h.runner.RunInterval(r.Context(), interval)
	if err != nil {
		if r.Context().Err() != nil {
			// client went away
			h.logger.Debug("Report request canceled", logger.Error(err))
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, upstream.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("Report run failed", logger.Error(err))
		WriteJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if format == "json" {
		err = res.WriteJSON(&buf)
		w.Header().Set("Content-Type", "application/json")
	} else {
		err = res.WriteText(&buf)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if err != nil {
		h.logger.Error("Failed to render report", logger.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Run-ID", res.RunID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("Failed to write report response", logger.Error(err))
	}

	h.logger.Debug("Served report",
		logger.String("run_id", res.RunID),
		logger.Int("flights", len(res.Ranked)),
		logger.Duration("duration", time.Since(start)))
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"interval_hours": h.runner.Interval().Hours(),
	}
	WriteJSON(w, http.StatusOK, response)
}

func parseHours(r *http.Request, def time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return def, nil
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hours: %q", raw)
	}
	if hours <= 0 || hours > MaxReportHours {
		return 0, fmt.Errorf("hours must be in (0, %g]: %g", MaxReportHours, hours)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
