package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/awantoch/loanscore/constants"
)

// ============================================================================
// STANDARDIZED ERROR HELPERS
// ============================================================================

// ErrorWrapper provides standardized error handling patterns
type ErrorWrapper struct {
	context string
}

// NewErrorWrapper creates a new error wrapper with context
func NewErrorWrapper(context string) *ErrorWrapper {
	return &ErrorWrapper{context: context}
}

// Wrapf wraps an error with context and formatting
func (e *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %s: %w", e.context, message, err)
}

// Failf creates a new error with context and formatting
func (e *ErrorWrapper) Failf(format string, args ...any) error {
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %s", e.context, message)
}

// ============================================================================
// STANDARDIZED JSON HELPERS
// ============================================================================

// MarshalJSONIndent marshals data to pretty JSON
func MarshalJSONIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", constants.JSONIndent)
}

// ============================================================================
// STANDARDIZED HTTP HELPERS
// ============================================================================

// WriteHTTPJSON writes v as a JSON response with the given status code.
func WriteHTTPJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		WriteHTTPDetail(w, http.StatusInternalServerError, constants.ResponseInternalError)
		return err
	}
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		Debug(constants.LogWriteFailed, err)
		return err
	}
	return nil
}

// WriteHTTPDetail writes a {"detail": message} error body.
func WriteHTTPDetail(w http.ResponseWriter, status int, message string) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": message}); err != nil {
		Debug(constants.LogJSONEncodeFailed, err)
	}
}

// ============================================================================
// STANDARDIZED CONTEXT HELPERS
// ============================================================================

// ContextValue safely extracts a value from context
func ContextValue[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	value := ctx.Value(key)
	if value == nil {
		return zero, false
	}

	typed, ok := value.(T)
	return typed, ok
}
