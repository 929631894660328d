package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"susu/internal/auth"
	"susu/internal/core"
)

func TestResponseBuilderJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/groups/g1").
		JSON(map[string]string{"id": "g1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type=%q", ct)
	}
	if loc := w.Header().Get("Location"); loc != "/groups/g1" {
		t.Errorf("location=%q", loc)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["id"] != "g1" {
		t.Errorf("body=%q err=%v", w.Body.String(), err)
	}
}

func TestResponseBuilderTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().
		Status(http.StatusNoContent).
		TriggerSlot(TriggerSlotReleased, "g1", "").
		Trigger(TriggerMemberChanged, nil).
		JSON(map[string]string{"ignored": "yes"}).
		Write(w)

	if w.Body.Len() != 0 {
		t.Errorf("204 must not carry a body, got %q", w.Body.String())
	}
	var triggers map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger: %v", err)
	}
	if triggers[TriggerSlotReleased]["groupId"] != "g1" {
		t.Errorf("slot trigger=%v", triggers[TriggerSlotReleased])
	}
	if _, ok := triggers[TriggerSlotReleased]["month"]; ok {
		t.Error("empty month should be omitted")
	}
	if _, ok := triggers[TriggerMemberChanged]; !ok {
		t.Error("member trigger missing")
	}
}

func TestErrorFrom(t *testing.T) {
	m, _ := core.ParseMonth("2024-03")
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		wantHold string
	}{
		{"validation", core.Invalid("month", "bad"), http.StatusUnprocessableEntity, "validation", ""},
		{"duplicate", &core.DuplicateMonthClaimError{GroupID: "g1", Month: m, HeldBy: "Kofi"}, http.StatusConflict, "duplicate_month_claim", "Kofi"},
		{"conflict", fmt.Errorf("insert: %w", core.ErrConflict), http.StatusConflict, "conflict", ""},
		{"not found", core.NewNotFound("group", "g9"), http.StatusNotFound, "not_found", ""},
		{"transient", core.NewTransient("list", errors.New("database is locked")), http.StatusServiceUnavailable, "transient_io", ""},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", ""},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFrom(tt.err).Write(w)
			if w.Code != tt.status {
				t.Fatalf("status=%d want %d", w.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.code || body.HeldBy != tt.wantHold {
				t.Fatalf("body=%+v", body)
			}
		})
	}
}

func TestErrorFromHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFrom(errors.New("sql: connection string with password")).Write(w)
	var body errorBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "internal error" {
		t.Fatalf("leaked error %q", body.Error)
	}
}

func TestTransientSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFrom(core.NewTransient("get", errors.New("timeout"))).Write(w)
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}
