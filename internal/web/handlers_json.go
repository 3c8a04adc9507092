package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultStatusLimit = 50
	maxStatusLimit     = 500
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.chart.Snapshot())
}

func (s *Server) handleListRanges(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"selected": s.chart.Snapshot().Range,
		"ranges":   s.ranges.Options(),
	})
}

func (s *Server) handleSetRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Range string `json:"range"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key := domain.RangeKey(strings.TrimSpace(req.Range))
	if err := s.chart.SetRange(r.Context(), key); err != nil {
		s.controlError(w, "range", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"range": string(key)})
}

func (s *Server) handleSetSeries(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Series string `json:"series"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	series := strings.TrimSpace(req.Series)
	if series == "" {
		s.writeError(w, http.StatusBadRequest, "series is required")
		return
	}
	if err := s.chart.SetSeries(r.Context(), series); err != nil {
		s.controlError(w, "series", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"series": series})
}

func (s *Server) controlError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownRange):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDriverStopped):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("Failed to set "+what, zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to set "+what)
	}
}

func (s *Server) handleListStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultStatusLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxStatusLimit {
			n = maxStatusLimit
		}
		limit = n
	}

	if s.statusRepo == nil {
		s.writeJSON(w, http.StatusOK, []domain.StatusEvent{})
		return
	}
	events, err := s.statusRepo.ListStatus(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list status events", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to list status events")
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		http.Error(w, "Chart rendering disabled", http.StatusNotFound)
		return
	}
	img, at, ok := s.images.Latest()
	if !ok {
		http.Error(w, "No chart rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	if _, err := w.Write(img); err != nil {
		s.logger.Debug("Failed to write chart", zap.Error(err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "WebSocket disabled", http.StatusNotFound)
		return
	}
	s.hub.Serve(w, r, s.initialFrame())
}

// initialFrame lets a new client draw the current series without waiting for a cycle.
func (s *Server) initialFrame() *Message {
	snap := s.chart.Snapshot()
	if len(snap.Points) == 0 {
		return nil
	}
	f := domain.NewFrame(snap.Series, snap.Range, domain.RenderFull, snap.Points, 0)
	return &Message{Type: MessageFrame, Frame: &f}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.chart.Snapshot()
	status := http.StatusOK
	state := "ok"
	if !snap.Running {
		status = http.StatusServiceUnavailable
		state = "stopped"
	}

	resp := map[string]interface{}{
		"status":   state,
		"series":   snap.Series,
		"phase":    snap.Phase,
		"failures": snap.Failures,
	}
	if !snap.LastSuccess.IsZero() {
		resp["last_success"] = snap.LastSuccess.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, status, resp)
}
