// Package http serves the allowance UI and its JSON API.
//
// This file holds the response builder and the mapping from service
// errors to status codes and messages.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"allowance/internal/core"
	applog "allowance/internal/log"
)

// ResponseBuilder provides a fluent API for writing responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v, encoded without HTML escaping, as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		b.err = err
		return b
	}
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body = buf.Bytes()
	return b
}

// Text sets a plain-text body.
func (b *ResponseBuilder) Text(s string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/plain; charset=utf-8"
	b.body = []byte(s)
	return b
}

// Body sets raw bytes with the given content type.
func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(b.body)))
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a plain-text error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Text(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// okJSON is the {"ok": true} acknowledgement of reference-table writes.
func okJSON() *ResponseBuilder {
	return NewResponse().JSON(map[string]bool{"ok": true})
}

// errorMessage is the client-facing text for a validation failure.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, errInvalidJSON):
		return "invalid json"
	case errors.Is(err, errBadParams):
		return "bad params"
	case errors.Is(err, core.ErrEmptyItem):
		return "item required"
	case errors.Is(err, core.ErrAmountNotInteger):
		return "amount must be int"
	case errors.Is(err, core.ErrInvalidDate):
		return "invalid date"
	case errors.Is(err, core.ErrInvalidMonth):
		return "invalid month"
	case errors.Is(err, core.ErrEmptyLabel):
		return "label required"
	case errors.Is(err, core.ErrUnknownTable):
		return "unknown table"
	case errors.Is(err, core.ErrBalanceOverflow):
		return "balance out of range"
	case errors.Is(err, core.ErrInvalidImport):
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return ve.Err.Error()
		}
		return "invalid import"
	}
	return "bad request"
}

// writeError maps err to a response: caller mistakes are 400 with their
// message, everything else is logged and answered with 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, errInvalidJSON) || core.IsValidation(err) {
		BadRequestError(errorMessage(err)).Write(w)
		return
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nobody reads the response.
		return
	}

	fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "")
	fields["storage"] = core.IsStorage(err)
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, op, fields)
	InternalServerError().Write(w)
}
