package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"susu/internal/core"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required,max=5"`
	Month string `json:"month" validate:"required,month"`
	Kind  string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{name: "valid", body: `{"name":"abc","month":"2024-06"}`},
		{name: "empty body", body: ``, wantFields: []string{"body"}},
		{name: "malformed", body: `{"name":`, wantFields: []string{"body"}},
		{name: "unknown field", body: `{"name":"abc","month":"2024-06","extra":1}`, wantFields: []string{"body"}},
		{name: "missing required", body: `{}`, wantFields: []string{"name", "month"}},
		{name: "bad month", body: `{"name":"abc","month":"2024-13"}`, wantFields: []string{"month"}},
		{name: "too long and bad enum", body: `{"name":"abcdef","month":"2024-01","kind":"c"}`, wantFields: []string{"name", "kind"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst sampleRequest
			err := DecodeJSON(r, &dst)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if !errors.Is(err, core.ErrValidation) {
				t.Error("error should match ErrValidation")
			}
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Fatalf("fields=%v want %v", got, tt.wantFields)
			}
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `","month":"2024-01"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst sampleRequest
	if err := DecodeJSON(r, &dst); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("oversized body: got %v", err)
	}
}

func TestOptionalMonth(t *testing.T) {
	tests := []struct {
		query   string
		want    string
		wantErr bool
	}{
		{query: "", want: ""},
		{query: "month=2024-02", want: "2024-02"},
		{query: "month=%202024-02%20", want: "2024-02"},
		{query: "month=Feb", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			m, err := OptionalMonth(r, "month")
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Fatalf("want validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := ""
			if m != nil {
				got = m.String()
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Abena  ", "Abena"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2\tend", "line1\nline2\tend"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionalString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?month=", nil)
	if v := optionalString(r, "month"); v == nil || *v != "" {
		t.Fatalf("present but empty: %v", v)
	}
	if v := optionalString(r, "other"); v != nil {
		t.Fatalf("absent: %v", *v)
	}
}
