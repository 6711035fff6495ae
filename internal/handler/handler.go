package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"workspace-commerce/internal/middleware"
	"workspace-commerce/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError maps err to a status code and writes the standard error body.
// Causes of server errors are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	correlationID := middleware.CorrelationID(r.Context())

	var de *model.DomainError
	if !errors.As(err, &de) {
		de = model.NewServerError("Internal server error", err)
	}

	status := statusFor(de.Code)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("code", de.Code).
		Int("status", status).
		Str("path", r.URL.Path).
		Str("correlation_id", correlationID).
		Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{
		Error:         de.Code,
		Message:       de.Message,
		CorrelationID: correlationID,
	})
}

// writeValidationError reports struct validation failures per field.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, r, model.NewValidationError(err.Error()), logger)
		return
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe.Namespace())] = fe.Tag()
	}

	logger.Warn().
		Interface("fields", fields).
		Str("path", r.URL.Path).
		Msg("request validation failed")

	writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{
		Error:         model.ErrCodeValidation,
		Message:       "Request validation failed",
		CorrelationID: middleware.CorrelationID(r.Context()),
		Fields:        fields,
	})
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func statusFor(code string) int {
	switch code {
	case model.ErrCodeInvalidJSON, model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewDomainError(model.ErrCodeInvalidJSON, "Invalid request body")
	}
	return nil
}

// orderIDParam parses the {id} URL parameter.
func orderIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, model.NewValidationError("Invalid order ID format")
	}
	return id, nil
}

// requireOwner returns the authenticated owner or ErrUnauthenticated.
func requireOwner(r *http.Request) (string, error) {
	owner := middleware.OwnerID(r.Context())
	if owner == "" {
		return "", model.ErrUnauthenticated
	}
	return owner, nil
}
