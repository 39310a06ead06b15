package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"rewards/internal/core"
	applog "rewards/internal/log"
)

type childOption struct {
	Name     string
	Selected bool
}

type indexView struct {
	Tab        string
	StartDate  string
	Today      string
	Children   []childOption
	Child      string
	StatusURL  string
	Banner     banner
	Activities []string
	Status     statusView
}

// selectedChild returns the requested child, or the first on the roster
// when none or an unknown one was asked for.
func (s *Server) selectedChild(r *http.Request) core.Child {
	roster := s.entries.Roster()
	c := core.Child(strings.TrimSpace(r.URL.Query().Get(fieldChild)))
	if roster.Contains(c) || len(roster) == 0 {
		return c
	}
	return roster[0]
}

func (s *Server) statusData(ctx context.Context, child core.Child) (statusView, error) {
	st, err := s.entries.WeeklyStatus(ctx, child)
	if err != nil {
		return statusView{}, err
	}
	return newStatusView(st, bannerFor(s.entries.Roster(), child)), nil
}

// handleIndex renders the recording tab for one child.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	child := s.selectedChild(r)

	view := indexView{
		Tab:        "record",
		StartDate:  s.entries.StartDate().String(),
		Today:      s.entries.Today().String(),
		Child:      string(child),
		StatusURL:  "/ui/status?child=" + url.QueryEscape(string(child)),
		Banner:     bannerFor(s.entries.Roster(), child),
		Activities: s.entries.Activities(),
	}
	for _, c := range s.entries.Roster() {
		view.Children = append(view.Children, childOption{Name: string(c), Selected: c == child})
	}
	if st, err := s.statusData(ctx, child); err == nil {
		view.Status = st
	}

	body, err := s.render(ctx, "index.html", view)
	if err != nil {
		InternalServerError("The page could not be rendered").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleCreateEntry appends one session from the recording form.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	in, err := ParseEntryForm(r.Form, s.entries.Today())
	if err == nil {
		var e core.Entry
		if e, err = s.entries.RecordEntry(ctx, in); err == nil {
			atomic.AddInt64(&s.metrics.entriesRecorded, 1)
			msg := fmt.Sprintf("Recorded! %s: %s on %s.", e.Child, e.Activity, e.Date)
			NewHTMXResponse().
				TriggerEntryRecorded(string(e.Child), e.WeekStart.String()).
				TriggerFormReset().
				BodyHTML([]byte(`<div class="success" role="status">` + template.HTMLEscapeString(msg) + `</div>`)).
				Write(w)
			return
		}
	}
	s.writeFailure(ctx, w, err, applog.OpRecord)
}

// handleStatus renders the weekly status partial for ?child=.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	child := core.Child(strings.TrimSpace(r.URL.Query().Get(fieldChild)))
	if child == "" {
		BadRequestError("child is required").Write(w)
		return
	}

	view, err := s.statusData(ctx, child)
	if err != nil {
		if isInvalid(err) {
			UnprocessableEntityError(userMessage(err)).Write(w)
			return
		}
		InternalServerError("Status is unavailable").Write(w)
		return
	}

	body, err := s.render(ctx, "status", view)
	if err != nil {
		InternalServerError("Status could not be rendered").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// writeFailure maps a failed write to 422 for user input problems and 500
// for everything else. Nothing was stored in either case.
func (s *Server) writeFailure(ctx context.Context, w http.ResponseWriter, err error, op string) {
	if isInvalid(err) {
		atomic.AddInt64(&s.metrics.rejected, 1)
		applog.FromContext(ctx).InfoContext(ctx, "Submission rejected",
			applog.FieldOperation, op, applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeValidation)
		UnprocessableEntityError(userMessage(err)).Write(w)
		return
	}
	atomic.AddInt64(&s.metrics.writeFailures, 1)
	applog.FromContext(ctx).ErrorContext(ctx, "Write failed",
		applog.FieldOperation, op, applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeStorage)
	InternalServerError("Saving failed. Your change was not stored, please try again.").Write(w)
}
