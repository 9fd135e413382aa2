// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Responder writes error envelopes. Stack traces are attached only when
// Debug is set, which the router enables outside production.
type Responder struct {
	Debug bool
}

// DefaultResponder is used by RespondError. The router replaces it at startup.
var DefaultResponder = Responder{}

// RespondError maps domain errors to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	DefaultResponder.Error(w, err)
}

// Error maps domain errors to HTTP status codes and writes the envelope.
func (rs Responder) Error(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		Fail(w, http.StatusBadRequest, FirstValidationMessage(verrs))
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, err.Error())
	default:
		env := Envelope{Success: false, Message: "internal server error"}
		if rs.Debug && err != nil {
			env.Error = err.Error()
			env.Stack = string(debug.Stack())
		}
		JSON(w, http.StatusInternalServerError, env)
	}
}

// FirstValidationMessage renders the first failing field as a readable sentence.
func FirstValidationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return ErrValidation.Error()
	}
	fe := errs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min", "gte":
		return field + " must be at least " + fe.Param()
	case "max", "lte":
		return field + " must be at most " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "len":
		return field + " must be " + fe.Param() + " characters long"
	default:
		return field + " is invalid"
	}
}
