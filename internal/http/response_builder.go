// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used by every handler to emit a JSON
// body together with the HX-Trigger header that tells a front-end which
// views to refresh.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"susu/internal/auth"
	"susu/internal/core"
	"susu/internal/log"
)

// Trigger names sent in HX-Trigger after a successful mutation.
const (
	TriggerGroupChanged   = "group:changed"
	TriggerMemberChanged  = "member:changed"
	TriggerSlotAssigned   = "slot:assigned"
	TriggerSlotReleased   = "slot:released"
	TriggerPaymentChanged = "payment:changed"
	TriggerUserChanged    = "user:changed"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       interface{}
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data interface{}) *ResponseBuilder {
	if data == nil {
		data = struct{}{}
	}
	b.triggers[name] = data
	return b
}

// TriggerSlot adds a slot trigger carrying the group and month.
func (b *ResponseBuilder) TriggerSlot(name, groupID, month string) *ResponseBuilder {
	data := map[string]string{"groupId": groupID}
	if month != "" {
		data["month"] = month
	}
	return b.Trigger(name, data)
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v interface{}) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields []core.FieldError `json:"fields,omitempty"`
	HeldBy string            `json:"heldBy,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: message, Code: code})
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", message)
}

// ErrorFrom maps a service error onto its HTTP status and JSON body.
func ErrorFrom(err error) *ResponseBuilder {
	var (
		verr *core.ValidationError
		derr *core.DuplicateMonthClaimError
	)
	switch {
	case errors.As(err, &verr):
		return NewResponse().
			Status(http.StatusUnprocessableEntity).
			JSON(errorBody{Error: verr.Error(), Code: "validation", Fields: verr.Fields})
	case errors.As(err, &derr):
		return NewResponse().
			Status(http.StatusConflict).
			JSON(errorBody{Error: derr.Error(), Code: "duplicate_month_claim", HeldBy: derr.HeldBy})
	case errors.Is(err, core.ErrConflict):
		return ErrorResponse(http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrTransientIO):
		return ErrorResponse(http.StatusServiceUnavailable, "transient_io", "storage temporarily unavailable, try again").
			Header("Retry-After", "1")
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return ErrorResponse(http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return ErrorResponse(http.StatusForbidden, "forbidden", err.Error())
	default:
		return InternalServerError("internal error")
	}
}
