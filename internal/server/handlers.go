package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scanviewer/internal/browser"
	"scanviewer/internal/logging"
	"scanviewer/internal/shell"
	"scanviewer/internal/statebus"
	"scanviewer/internal/timeline"
)

type frameRequest struct {
	VideoID int64 `json:"videoId"`
	Frame   int   `json:"frame"`
}

type pointerRequest struct {
	VideoID int64   `json:"videoId"`
	Event   string  `json:"event"`
	X       float64 `json:"x"`
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type thresholdRequest struct {
	Threshold *float64 `json:"threshold"`
	Reload    bool     `json:"reload"`
}

type eventsResponse struct {
	Version uint64 `json:"version"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, err := strconv.ParseUint(query.Get("since"), 10, 64)
	if err != nil && query.Get("since") != "" {
		s.writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	timeout := defaultPollTimeout
	if value := strings.TrimSpace(query.Get("timeout")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid timeout")
			return
		}
		timeout = min(parsed, maxPollTimeout)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	version, err := s.app.Bus().Wait(ctx, since)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, eventsResponse{Version: version, Changed: true})
	case errors.Is(err, context.DeadlineExceeded):
		s.writeJSON(w, http.StatusOK, eventsResponse{Version: version})
	case errors.Is(err, statebus.ErrBusClosed):
		s.writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		// client went away
	}
}

func (s *Server) handleOverlaySVG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.app.WriteOverlaySVG(w); err != nil {
		s.logger.Debug("overlay write failed", logging.Error(err))
	}
}

func (s *Server) handleOverlayPNG(w http.ResponseWriter, r *http.Request) {
	img := s.app.OverlayImage()
	if img.Bounds().Empty() {
		s.writeError(w, http.StatusConflict, "viewer has no size")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.logger.Debug("overlay png encode failed", logging.Error(err))
	}
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	idText, ok := strings.CutSuffix(file, ".svg")
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	videoID, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	var buf strings.Builder
	if err := s.app.WritePlotSVG(&buf, videoID); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, buf.String())
}

func (s *Server) handleSelectDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, s.app.SelectDataset(r.Context(), id))
}

func (s *Server) handleSelectJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, s.app.SelectJob(r.Context(), id))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.app.Reload(r.Context()))
}

func (s *Server) handleSelectFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.app.SelectFrame(r.Context(), timeline.Selection{VideoID: req.VideoID, Frame: req.Frame}))
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := browser.ParsePointerKind(req.Event)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.Pointer(req.VideoID, kind, req.X); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	key, err := shell.ParseKey(r.PathValue("dir"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, r, s.app.Key(r.Context(), key))
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		s.writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}
	s.app.Resize(req.Width, req.Height)
	s.respond(w, r, nil)
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Threshold == nil {
		s.writeError(w, http.StatusBadRequest, "threshold is required")
		return
	}
	if err := s.app.SetThreshold(*req.Threshold); err != nil {
		s.writeAppError(w, err)
		return
	}
	if req.Reload {
		s.respond(w, r, s.app.Reload(r.Context()))
		return
	}
	s.respond(w, r, nil)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.app.Jump(r.Context()))
}

// respond writes the post-operation state, or the error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Debug("request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	s.writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shell.ErrUnknownDataset),
		errors.Is(err, shell.ErrUnknownJob),
		errors.Is(err, shell.ErrUnknownVideo):
		return http.StatusNotFound
	case errors.Is(err, shell.ErrNoDataset),
		errors.Is(err, shell.ErrNoJob),
		errors.Is(err, shell.ErrNoVideo):
		return http.StatusConflict
	case errors.Is(err, shell.ErrBadThreshold):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
