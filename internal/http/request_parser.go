// Package http provides the JSON API server and its handlers.
//
// This file decodes and validates request bodies and query parameters.
// Validation failures come back as core.ValidationError so every handler
// reports them the same way.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"susu/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		_, err := core.ParseMonth(fl.Field().String())
		return err == nil
	})
	return v
}

// DecodeJSON reads the body into dst and validates its struct tags.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Invalid("body", "request body is empty")
		}
		return core.Invalid("body", "malformed JSON: "+err.Error())
	}
	return ValidateStruct(dst)
}

// ValidateStruct runs the validator and converts its errors to field errors.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]core.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, core.FieldError{Field: fieldPath(fe), Error: describe(fe)})
	}
	return core.NewValidationError(core.ErrValidation, fields...)
}

// fieldPath drops the struct name from the namespace: "req.items[0].x" -> "items[0].x".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "month":
		return "must be a month in YYYY-MM format"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// OptionalMonth reads a YYYY-MM query parameter. An absent parameter yields nil.
func OptionalMonth(r *http.Request, name string) (*core.Month, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	m, err := core.ParseMonth(raw)
	if err != nil {
		return nil, core.Invalid(name, "must be a month in YYYY-MM format")
	}
	return &m, nil
}

// QueryString reads a trimmed, sanitized query parameter.
func QueryString(r *http.Request, name string) string {
	return sanitizeInput(r.URL.Query().Get(name))
}
