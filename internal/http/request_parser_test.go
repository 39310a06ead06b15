package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"rewards/internal/core"
	"rewards/internal/services"
)

func TestParseEntryForm(t *testing.T) {
	today := core.NewDate(2025, 12, 24)

	tests := []struct {
		name    string
		form    url.Values
		want    services.EntryInput
		wantErr bool
	}{
		{
			name: "full form",
			form: url.Values{"date": {"2025-12-23"}, "child": {" Cheryl "}, "activity": {"Swimming"}, "note": {"pool\x00"}},
			want: services.EntryInput{Date: core.NewDate(2025, 12, 23), Child: "Cheryl", Activity: "Swimming", Note: "pool"},
		},
		{
			name: "empty date is today",
			form: url.Values{"child": {"Jacqueline"}, "activity": {"Swimming"}},
			want: services.EntryInput{Date: today, Child: "Jacqueline", Activity: "Swimming"},
		},
		{
			name: "other uses free text",
			form: url.Values{"child": {"Cheryl"}, "activity": {"Other"}, "activity_other": {"Stairs x10"}},
			want: services.EntryInput{Date: today, Child: "Cheryl", Activity: "Stairs x10"},
		},
		{
			name: "free text ignored for listed activity",
			form: url.Values{"child": {"Cheryl"}, "activity": {"Swimming"}, "activity_other": {"Stairs"}},
			want: services.EntryInput{Date: today, Child: "Cheryl", Activity: "Swimming"},
		},
		{
			name:    "bad date",
			form:    url.Values{"date": {"24/12/2025"}, "child": {"Cheryl"}, "activity": {"Swimming"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntryForm(tt.form, today)
			if tt.wantErr {
				if !errors.Is(err, services.ErrInvalidEntry) {
					t.Fatalf("err = %v, want ErrInvalidEntry", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Date.Equal(tt.want.Date) || got.Child != tt.want.Child || got.Activity != tt.want.Activity || got.Note != tt.want.Note {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseGridForm(t *testing.T) {
	form := url.Values{
		"row_count":  {"3"},
		"date_0":     {"2025-12-22"},
		"child_0":    {"Jacqueline"},
		"activity_0": {"Swimming"},
		"date_1":     {"2025-12-23"},
		"child_1":    {"Cheryl"},
		"activity_1": {"Other"},
		"note_1":     {"stairs"},
		"delete_1":   {"on"},
		// row 2 left blank
		"date_7": {"ignored, past row_count"},
	}

	rows, err := ParseGridForm(form)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0] != (services.GridRow{Date: "2025-12-22", Child: "Jacqueline", Activity: "Swimming"}) {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if !rows[1].Delete || rows[1].Note != "stairs" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[2] != (services.GridRow{}) {
		t.Errorf("row 2 = %+v", rows[2])
	}
}

func TestParseGridForm_BadRowCount(t *testing.T) {
	for _, v := range []string{"", "x", "-1", "5001"} {
		if _, err := ParseGridForm(url.Values{"row_count": {v}}); !errors.Is(err, errMalformedForm) {
			t.Errorf("row_count %q: err = %v", v, err)
		}
	}
}

func TestRequirePOST(t *testing.T) {
	if RequirePOST(httptest.NewRequest(http.MethodPost, "/", nil)) != nil {
		t.Error("POST should pass")
	}
	b := RequirePOST(httptest.NewRequest(http.MethodGet, "/", nil))
	if b == nil {
		t.Fatal("GET should be rejected")
	}
	w := httptest.NewRecorder()
	b.Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "POST" {
		t.Errorf("got %d allow=%q", w.Code, w.Header().Get("Allow"))
	}
}
