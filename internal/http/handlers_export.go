package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"payrollforms/internal/core"
	"payrollforms/internal/export"
	"payrollforms/internal/log"

	"github.com/gorilla/mux"
)

// handleExport serves a download. JSON and text hold every form, CSV the selected month.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		BadRequestError("Unknown export format").Write(w)
		return
	}

	data, filename, err := s.ctrl.Export(format)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Export failed", err, log.OpExport,
			log.LogFields{log.FieldFormat: string(format)})
		InternalServerError("Export failed").Write(w)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Export served",
		log.FieldOperation, log.OpExport,
		log.FieldFormat, string(format),
		"bytes", len(data))

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

type apiForms struct {
	Month      string        `json:"month"`
	Label      string        `json:"label"`
	Total      int           `json:"total"`
	MonthCount int           `json:"monthCount"`
	ReadOnly   bool          `json:"readOnly"`
	Forms      []core.Record `json:"forms"`
}

// handleAPIForms returns the selected month view as JSON, newest first.
func (s *Server) handleAPIForms(w http.ResponseWriter, r *http.Request) {
	view := s.ctrl.View()
	forms := view.Records
	if forms == nil {
		forms = []core.Record{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(apiForms{
		Month:      view.MonthKey,
		Label:      view.Label,
		Total:      view.Total,
		MonthCount: view.MonthCount,
		ReadOnly:   view.ReadOnly,
		Forms:      forms,
	})
}
