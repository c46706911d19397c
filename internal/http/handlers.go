package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"payrollforms/internal/controller"
	"payrollforms/internal/log"
	"payrollforms/internal/settings"
)

const lastSavedLayout = "2006-01-02 15:04:05"

// pageData feeds index.html. The forms and settings partials reuse parts of it.
type pageData struct {
	View      controller.View
	Settings  settings.Settings
	Backend   string
	LastSaved string
}

func formatLastSaved(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(lastSavedLayout)
}

func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, fmt.Errorf("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.readyCache.Remember(s.backend, func() error { return s.ready(ctx) }); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Backend not ready", log.FieldBackend, s.backend, log.FieldError, err)
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"hits":           atomic.LoadInt64(&s.metrics.rateLimitHits),
	}
	checks["security"] = map[string]any{
		"suspicious_requests": atomic.LoadInt64(&s.metrics.suspiciousRequests),
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"backend":   s.backend,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := s.ctrl.View()
	data := pageData{
		View:      view,
		Settings:  s.settings.Get(),
		Backend:   s.backend,
		LastSaved: formatLastSaved(view.LastSaved),
	}
	body, err := s.render("index.html", data)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentTemplate).ErrorContext(ctx, "Index template execution failed",
			log.FieldError, err, log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}
