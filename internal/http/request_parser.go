// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rewards/internal/core"
	"rewards/internal/services"
)

// Form field names shared with the templates.
const (
	fieldDate          = "date"
	fieldChild         = "child"
	fieldActivity      = "activity"
	fieldActivityOther = "activity_other"
	fieldNote          = "note"
	fieldRowCount      = "row_count"
	fieldDelete        = "delete"
	fieldConfirm       = "confirm"

	// otherActivity is the selector value that enables the free-text field.
	otherActivity = "Other"

	// maxGridRows bounds row_count so a forged form cannot allocate unboundedly.
	maxGridRows = 5000
)

var errMalformedForm = errors.New("malformed form")

// ParseEntryForm reads the recording form. An empty date means today.
// Choosing "Other" with free text records the free text as the activity.
func ParseEntryForm(form url.Values, today core.Date) (services.EntryInput, error) {
	in := services.EntryInput{
		Date:     today,
		Child:    core.Child(sanitizeInput(form.Get(fieldChild))),
		Activity: sanitizeInput(form.Get(fieldActivity)),
		Note:     sanitizeInput(form.Get(fieldNote)),
	}

	if v := strings.TrimSpace(form.Get(fieldDate)); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return services.EntryInput{}, fmt.Errorf("%w: date %q: %w", services.ErrInvalidEntry, v, err)
		}
		in.Date = d
	}

	if other := sanitizeInput(form.Get(fieldActivityOther)); other != "" && (in.Activity == otherActivity || in.Activity == "") {
		in.Activity = other
	}
	return in, nil
}

// ParseGridForm reads the bulk-edit grid. Rows are submitted as indexed
// fields (date_0, child_0, ...) with row_count giving how many to read.
func ParseGridForm(form url.Values) ([]services.GridRow, error) {
	n, err := strconv.Atoi(strings.TrimSpace(form.Get(fieldRowCount)))
	if err != nil || n < 0 || n > maxGridRows {
		return nil, fmt.Errorf("%w: row_count %q", errMalformedForm, form.Get(fieldRowCount))
	}

	rows := make([]services.GridRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, services.GridRow{
			Date:     strings.TrimSpace(form.Get(indexed(fieldDate, i))),
			Child:    sanitizeInput(form.Get(indexed(fieldChild, i))),
			Activity: sanitizeInput(form.Get(indexed(fieldActivity, i))),
			Note:     sanitizeInput(form.Get(indexed(fieldNote, i))),
			Delete:   form.Get(indexed(fieldDelete, i)) != "",
		})
	}
	return rows, nil
}

func indexed(name string, i int) string {
	return name + "_" + strconv.Itoa(i)
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Malformed request")
	}
	return nil
}
