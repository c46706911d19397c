package http

import (
	"net/http"
	"strings"

	"payrollforms/internal/log"
	"payrollforms/internal/settings"
)

const msgSettingsSaved = "Settings saved"

func (s *Server) settingsBody(st settings.Settings) ([]byte, error) {
	return s.render("settings", pageData{Settings: st, Backend: s.backend})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st := s.settings.Get()
	if !isHTMX(r) && strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, st)
		return
	}
	body, err := s.settingsBody(st)
	if err != nil {
		InternalServerError("Error rendering settings").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleSaveSettings persists the sheet name and auto-open flag. A new sheet
// name takes effect on the next spreadsheet load or save.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	next := s.settings.Get()
	if v, ok := r.Form["sheetName"]; ok && len(v) > 0 {
		next.SheetName = v[0]
	}
	next.AutoOpen = formBool(r, "autoOpen")

	if err := s.settings.Save(ctx, next); err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Saving settings failed", err, log.OpSave, nil)
		InternalServerError("Error saving settings").Write(w)
		return
	}
	saved := s.settings.Get()
	if s.sheets != nil {
		s.sheets.SetSheetName(saved.SheetName)
	}
	log.FromContext(ctx).InfoContext(ctx, "Settings saved",
		log.FieldSheet, saved.SheetName,
		"auto_open", saved.AutoOpen)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	body, err := s.settingsBody(saved)
	if err != nil {
		InternalServerError("Error rendering settings").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerSuccessNotification(msgSettingsSaved).
		BodyHTML(body).
		Write(w)
}
