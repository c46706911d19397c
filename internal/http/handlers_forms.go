package http

import (
	"errors"
	"net/http"

	"payrollforms/internal/controller"
	"payrollforms/internal/core"
	"payrollforms/internal/log"

	"github.com/gorilla/mux"
)

// Toast texts shown by the taskpane.
const (
	msgAdded      = "New form added successfully!"
	msgDeleted    = "Form deleted successfully!"
	msgDuplicated = "Form duplicated successfully!"
	msgCleared    = "All data cleared successfully!"
	msgSaveError  = "Error saving data"
	msgReadOnly   = "Only the current month can be edited"
	msgNotFound   = "Form not found"
	msgConfirm    = "Please confirm clearing all data"
	msgClosed     = "The application is shutting down"
)

func (s *Server) formsBody(view controller.View) ([]byte, error) {
	return s.render("forms", pageData{View: view, LastSaved: formatLastSaved(view.LastSaved)})
}

// respondForms writes the refreshed forms panel. Plain form posts are
// redirected to the page instead.
func (s *Server) respondForms(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	view := s.ctrl.View()
	body, err := s.formsBody(view)
	if err != nil {
		ctx := r.Context()
		log.FromContext(ctx).WithComponent(log.ComponentTemplate).ErrorContext(ctx, "Forms template execution failed", log.FieldError, err)
		InternalServerError("Error rendering forms").Write(w)
		return
	}
	b.TriggerFormsChanged(view.MonthKey, view.Total, view.MonthCount).
		BodyHTML(body).
		Write(w)
}

// writeError maps controller errors to responses. Persistence failures are
// not handled here: the mutation stands and the panel is still rendered.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentController)
	switch {
	case errors.Is(err, controller.ErrMonthReadOnly):
		logger.InfoContext(ctx, "Rejected change to a past month", log.FieldOperation, op, log.FieldError, err)
		ConflictError(msgReadOnly).Write(w)
	case errors.Is(err, core.ErrNotFound):
		logger.InfoContext(ctx, "Form not found", log.FieldOperation, op, log.FieldError, err)
		NotFoundError(msgNotFound).Write(w)
	case errors.Is(err, controller.ErrConfirmationRequired):
		BadRequestError(msgConfirm).Write(w)
	case errors.Is(err, controller.ErrClosed):
		ServiceUnavailableError(msgClosed).Write(w)
	default:
		log.NewStructuredLogger(logger).LogError(ctx, "Form operation failed", err, op, nil)
		InternalServerError(msgSaveError).Write(w)
	}
}

// settle splits a controller result into "stop, error already written" and
// "continue", adding the save-failure toast when only the save failed.
func (s *Server) settle(w http.ResponseWriter, r *http.Request, op string, err error, b *HTMXResponseBuilder, success string) bool {
	if err == nil {
		s.takeSaveFailure()
		b.TriggerSuccessNotification(success)
		return true
	}
	var pe *core.PersistenceError
	if errors.As(err, &pe) {
		s.takeSaveFailure()
		b.TriggerErrorNotification(msgSaveError)
		return true
	}
	s.writeError(w, r, op, err)
	return false
}

func (s *Server) handleFormsPartial(w http.ResponseWriter, r *http.Request) {
	b := NewHTMXResponse()
	if s.takeSaveFailure() {
		b.TriggerErrorNotification(msgSaveError)
	}
	view := s.ctrl.View()
	body, err := s.formsBody(view)
	if err != nil {
		InternalServerError("Error rendering forms").Write(w)
		return
	}
	b.BodyHTML(body).Write(w)
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := s.ctrl.AddNew(ctx)
	b := NewHTMXResponse()
	if !s.settle(w, r, log.OpCreate, err, b, msgAdded) {
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogRecordChanged(ctx, log.OpCreate, rec.ID, rec.MonthKey)
	b.TriggerFocus(rec.ID, int(controller.DefaultFocusDelay.Milliseconds()))
	s.respondForms(w, r, b)
}

// handleEditForm stores content exactly as typed. The write happens on the debounced flush.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	if err := s.ctrl.Edit(id, r.FormValue("content")); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	b := NewHTMXResponse().Status(http.StatusNoContent)
	if s.takeSaveFailure() {
		b.TriggerErrorNotification(msgSaveError)
	}
	b.Write(w)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	err := s.ctrl.Delete(ctx, id)
	b := NewHTMXResponse()
	if !s.settle(w, r, log.OpDelete, err, b, msgDeleted) {
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogRecordChanged(ctx, log.OpDelete, id, "")
	s.respondForms(w, r, b)
}

func (s *Server) handleDuplicateForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dup, err := s.ctrl.Duplicate(ctx, mux.Vars(r)["id"])
	b := NewHTMXResponse()
	if !s.settle(w, r, log.OpDuplicate, err, b, msgDuplicated) {
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogRecordChanged(ctx, log.OpDuplicate, dup.ID, dup.MonthKey)
	s.respondForms(w, r, b)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	err := s.ctrl.ClearAll(r.Context(), formBool(r, "confirm"))
	b := NewHTMXResponse()
	if !s.settle(w, r, log.OpClear, err, b, msgCleared) {
		return
	}
	s.respondForms(w, r, b)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["direction"] {
	case "prev":
		s.ctrl.ChangeMonth(-1)
	case "next":
		s.ctrl.ChangeMonth(1)
	default:
		s.ctrl.GoToToday()
	}
	s.respondForms(w, r, NewHTMXResponse())
}

// observe records failed saves so the next response can raise a toast.
// Debounced saves have no request of their own to report through.
func (s *Server) observe(ev controller.Event) {
	switch ev.Kind {
	case controller.EventSaveFailed:
		s.saveFailed.Store(true)
	case controller.EventSaved:
		s.saveFailed.Store(false)
	}
}

func (s *Server) takeSaveFailure() bool {
	return s.saveFailed.Swap(false)
}
