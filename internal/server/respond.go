package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"iamblessed-funnel-go/internal/assistant"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/payments"
	"iamblessed-funnel-go/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	var providerErr *messaging.ProviderError
	var upstreamErr *assistant.StatusError

	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, payments.ErrNotConfigured), errors.Is(err, errAssistantDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &providerErr):
		return messaging.HTTPStatus(err)
	case errors.As(err, &upstreamErr):
		return assistant.HTTPStatus(err)
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var validationErrs validator.ValidationErrors
	message := err.Error()
	switch {
	case errors.As(err, &validationErrs):
		message = strings.Join(FormatValidationError(validationErrs), "; ")
	case status == http.StatusInternalServerError:
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "something went wrong"
	}
	writeError(w, r, status, message)
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
		}
	}
	return s.validate.Struct(dst)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormatValidationError turns validator failures into readable messages.
func FormatValidationError(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "required_without":
			out = append(out, fmt.Sprintf("%s is required when %s is empty", field, jsonName(e.Param())))
		case "email":
			out = append(out, fmt.Sprintf("%s must be a valid email", field))
		case "url":
			out = append(out, fmt.Sprintf("%s must be a valid URL", field))
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "len":
			out = append(out, fmt.Sprintf("%s must be exactly %s characters", field, e.Param()))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		default:
			out = append(out, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return out
}

// jsonName converts a Go field name such as NomineeEmail to nominee_email.
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
