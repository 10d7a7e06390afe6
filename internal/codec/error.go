package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Machine-stable error codes carried in every error body.
const (
	CodeConfiguration = "configuration_error"
	CodeAuthorization = "authorization_error"
	CodeValidation    = "validation_error"
	CodeDownstream    = "downstream_error"
	CodeTimeout       = "timeout"
)

// Error is the gateway's HTTP-mappable failure value: a status code plus a
// structured body. Field names the offending request field for validation
// failures.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON envelope for error bodies.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// Validation returns a 400 error naming the offending field.
func Validation(field, message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Field: field}
}

// Configuration returns a 500 error for missing or malformed credentials.
func Configuration(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeConfiguration, Message: message}
}

// Authorization returns a 401 error for missing or wrong API keys.
func Authorization(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeAuthorization, Message: message}
}

// Timeout returns a 504 error for requests that exceeded their budget.
func Timeout() *Error {
	return &Error{Status: http.StatusGatewayTimeout, Code: CodeTimeout, Message: "request exceeded its execution budget"}
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured error body. Credential values never pass
// through here; messages are built from stable text and field names only.
func WriteError(w http.ResponseWriter, err *Error) {
	slog.Error("request failed", "status", err.Status, "code", err.Code, "error", err.Message)
	WriteJSON(w, err.Status, ErrorResponse{Error: err})
}

// FormatUpstreamError formats an error from the downstream response.
func FormatUpstreamError(statusCode int, rawBody []byte) string {
	status := fmt.Sprintf("%d", statusCode)
	if text := http.StatusText(statusCode); text != "" {
		status = fmt.Sprintf("%d %s", statusCode, text)
	}
	if msg := ExtractUpstreamErrorMessage(rawBody); msg != "" {
		return fmt.Sprintf("provider returned HTTP %s: %s", status, msg)
	}
	if preview := compactBodyPreview(rawBody, 280); preview != "" {
		return fmt.Sprintf("provider returned HTTP %s with unparsed body: %s", status, preview)
	}
	return fmt.Sprintf("provider returned HTTP %s with empty error body", status)
}

// ExtractUpstreamErrorMessage pulls a human-readable message out of a
// downstream error body, trying the field names the provider is known to use.
func ExtractUpstreamErrorMessage(rawBody []byte) string {
	trimmed := strings.TrimSpace(string(rawBody))
	if trimmed == "" || !gjson.Valid(trimmed) {
		return ""
	}
	for _, path := range []string{
		"error.message",
		"error",
		"message",
		"detail",
		"text",
		"reason",
	} {
		if v := gjson.Get(trimmed, path); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return strings.TrimSpace(v.Str)
		}
	}
	return ""
}

func compactBodyPreview(rawBody []byte, maxLen int) string {
	trimmed := strings.TrimSpace(string(rawBody))
	if trimmed == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	if len(clean) <= maxLen {
		return clean
	}
	return clean[:maxLen] + "..."
}
