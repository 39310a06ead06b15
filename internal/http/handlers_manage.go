package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	applog "rewards/internal/log"
)

type manageView struct {
	Tab       string
	StartDate string
	Roster    []string
	Rows      []gridRowView
	RowCount  int
	Empty     bool
	Message   string
	Error     string
	Board     []statusView
}

func (s *Server) newManageView(rows []gridRowView) manageView {
	return manageView{
		Tab:       "manage",
		StartDate: s.entries.StartDate().String(),
		Roster:    s.entries.Roster().Names(),
		Rows:      rows,
		RowCount:  len(rows),
		Empty:     len(rows) == blankGridRows,
	}
}

// handleManage shows the bulk-edit grid on GET and saves it on POST.
func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		view := s.newManageView(gridFromTable(s.entries.Snapshot(r.Context()).Table))
		view.Board = s.boardData(r.Context())
		s.writeManage(r.Context(), w, "manage.html", http.StatusOK, view)
	case http.MethodPost:
		s.handleSaveGrid(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleSaveGrid replaces the whole table with the submitted grid. One bad
// row rejects the save and the grid comes back with the user's edits.
func (s *Server) handleSaveGrid(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	submitted, err := ParseGridForm(r.Form)
	if err != nil {
		BadRequestError("The grid could not be read, please reload the page").Write(w)
		return
	}

	t, err := s.entries.SaveGrid(ctx, submitted)
	if err != nil {
		view := s.newManageView(gridFromSubmission(submitted))
		status := http.StatusInternalServerError
		view.Error = "Saving failed. Your changes were not stored, please try again."
		if isInvalid(err) {
			status = http.StatusUnprocessableEntity
			view.Error = userMessage(err)
			atomic.AddInt64(&s.metrics.rejected, 1)
		} else {
			atomic.AddInt64(&s.metrics.writeFailures, 1)
		}
		applog.FromContext(ctx).WarnContext(ctx, "Grid save failed",
			applog.FieldOperation, applog.OpReplace, applog.FieldError, err)
		s.writeManage(ctx, w, "grid", status, view)
		return
	}

	atomic.AddInt64(&s.metrics.tablesReplaced, 1)
	view := s.newManageView(gridFromTable(t))
	view.Message = "Saved."
	body, err := s.render(ctx, "grid", view)
	if err != nil {
		InternalServerError("Saved, but the grid could not be rendered. Please reload.").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerTableReplaced(len(t)).
		TriggerSuccessNotification(savedMessage(len(t))).
		BodyHTML(body).
		Write(w)
}

// handleReset stores an empty table. The form must carry confirm=yes.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	if r.Form.Get(fieldConfirm) != "yes" {
		BadRequestError("Reset was not confirmed").Write(w)
		return
	}
	if err := s.entries.Reset(ctx); err != nil {
		s.writeFailure(ctx, w, err, applog.OpReset)
		return
	}

	atomic.AddInt64(&s.metrics.resets, 1)
	view := s.newManageView(gridFromTable(nil))
	view.Message = "All records were cleared."
	body, err := s.render(ctx, "grid", view)
	if err != nil {
		InternalServerError("Cleared, but the grid could not be rendered. Please reload.").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerTableReset().
		TriggerNotification(NotificationWarning, "All records were cleared.", 5000).
		BodyHTML(body).
		Write(w)
}

// boardData is this week's status for every child, in roster order.
func (s *Server) boardData(ctx context.Context) []statusView {
	roster := s.entries.Roster()
	var out []statusView
	for _, st := range s.entries.Board(ctx) {
		out = append(out, newStatusView(st, bannerFor(roster, st.Child)))
	}
	return out
}

// handleBoard renders the weekly board partial. The manage tab reloads it
// after every save and reset.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	body, err := s.render(r.Context(), "board", s.boardData(r.Context()))
	if err != nil {
		InternalServerError("The weekly board is unavailable").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func savedMessage(rows int) string {
	if rows == 1 {
		return "Saved 1 record."
	}
	return fmt.Sprintf("Saved %d records.", rows)
}

func (s *Server) writeManage(ctx context.Context, w http.ResponseWriter, name string, status int, view manageView) {
	body, err := s.render(ctx, name, view)
	if err != nil {
		InternalServerError("The page could not be rendered").Write(w)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(body).Write(w)
}
