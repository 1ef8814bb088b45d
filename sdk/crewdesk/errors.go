package crewdesk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the API. Body holds the raw response
// body for the presentation mapper and for callers that need the exact
// server payload.
type APIError struct {
	StatusCode int
	Body       []byte
	Method     string
	Path       string
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("crewdesk: %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// genericErrorMessage is the mapper's last resort.
const genericErrorMessage = "Something went wrong. Please try again."

// validationErrorMessage covers validation failures that carry no usable
// detail of their own.
const validationErrorMessage = "Validation error"

var statusMessages = map[int]string{
	http.StatusUnauthorized:        "Invalid credentials",
	http.StatusForbidden:           "Access denied",
	http.StatusNotFound:            "Not found",
	http.StatusConflict:            "Already exists",
	http.StatusUnprocessableEntity: validationErrorMessage,
	http.StatusTooManyRequests:     "Too many requests. Please wait and try again.",
}

// Message resolves any client failure into a human-readable string for
// display. Priority, first match wins: structured "message" field in the
// body, "detail" as a string, first entry of a "detail" list, a recognized
// status code, the underlying transport error, then a generic fallback. It
// never panics and never returns an empty string for a non-nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := messageFromBody(apiErr.Body); msg != "" {
			return msg
		}
		if msg, ok := statusMessages[apiErr.StatusCode]; ok {
			return msg
		}
		return genericErrorMessage
	}
	if msg := rootCause(err).Error(); msg != "" {
		return msg
	}
	return genericErrorMessage
}

// messageFromBody walks the known error body shapes in priority order.
func messageFromBody(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}
	detail := gjson.GetBytes(body, "detail")
	if detail.Type == gjson.String && detail.Str != "" {
		return detail.Str
	}
	if detail.IsArray() {
		entries := detail.Array()
		if len(entries) == 0 {
			return ""
		}
		if msg := entries[0].Get("msg"); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
		return validationErrorMessage
	}
	return ""
}

// rootCause unwraps to the innermost error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
