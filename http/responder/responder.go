// Package responder writes the JSON response envelope
// {"status": "success"|"error", "data": ..., "error": ..., "meta": ...}.
package responder

import (
	"net/http"

	"github.com/leeforge/pluginhub/http/middleware"
	"github.com/leeforge/pluginhub/json"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		fallback := []byte(`{"status":"error","error":{"code":"INTERNAL_ERROR","message":"encode failed"},"meta":{}}`)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(fallback)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(raw)
}

// requestMeta fills trace id and elapsed time from the request middlewares.
func requestMeta(r *http.Request, opts []Option) *Meta {
	base := make([]Option, 0, len(opts)+2)
	if r != nil {
		if id := middleware.GetTraceIDFromRequest(r); id != "" {
			base = append(base, WithTraceID(id))
		}
		if took := middleware.GetRequestDurationFromRequest(r); took > 0 {
			base = append(base, WithTook(took))
		}
	}
	return NewMeta(append(base, opts...)...)
}

// Write sends a success response with data
func Write(w http.ResponseWriter, r *http.Request, status int, data any, opts ...Option) {
	writeJSON(w, status, &Response{
		Status: StatusSuccess,
		Data:   data,
		Meta:   *requestMeta(r, opts),
	})
}

// WriteError sends an error response. data may be nil.
func WriteError(w http.ResponseWriter, r *http.Request, status int, err Error, data any, opts ...Option) {
	writeJSON(w, status, &Response{
		Status: StatusError,
		Data:   data,
		Error:  &err,
		Meta:   *requestMeta(r, opts),
	})
}

// OK responds with 200 OK and data
func OK(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusOK, data, opts...)
}

// Created responds with 201 Created and data
func Created(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusCreated, data, opts...)
}

// Fail maps err to its HTTP status and writes the error envelope.
func Fail(w http.ResponseWriter, r *http.Request, err error, opts ...Option) {
	FailWithData(w, r, err, nil, opts...)
}

// FailWithData is Fail with a data payload, used when a failed operation
// still committed state the caller needs to see.
func FailWithData(w http.ResponseWriter, r *http.Request, err error, data any, opts ...Option) {
	status, body := ErrorFromApp(err)
	WriteError(w, r, status, body, data, opts...)
}

// BadRequest responds with 400 Bad Request
func BadRequest(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewError(ErrCodeBadRequest, message), nil, opts...)
}

// Unauthorized responds with 401 Unauthorized
func Unauthorized(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusUnauthorized, NewError(ErrCodeUnauthorized, message), nil, opts...)
}

// Forbidden responds with 403 Forbidden
func Forbidden(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusForbidden, NewError(ErrCodeForbidden, message), nil, opts...)
}

// NotFound responds with 404 Not Found
func NotFound(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusNotFound, NewError(ErrCodeNotFound, message), nil, opts...)
}

// RouteNotFound is a chi NotFound handler.
func RouteNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, NewError(ErrCodeRouteNotFound, ""), nil)
}

// MethodNotAllowed is a chi MethodNotAllowed handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, NewError(ErrCodeMethodNotAllowed, ""), nil)
}

// ValidationError responds with 400 Bad Request and validation details
func ValidationError(w http.ResponseWriter, r *http.Request, details any, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeValidationFailed, "", details), nil, opts...)
}

// BindError responds with 400 Bad Request for binding errors
func BindError(w http.ResponseWriter, r *http.Request, details any, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeBindFailed, "", details), nil, opts...)
}

// InternalServerError responds with 500 Internal Server Error
func InternalServerError(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusInternalServerError, NewError(ErrCodeInternalServer, message), nil, opts...)
}

// ServiceUnavailable responds with 503 and data describing what is down.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string, data any, opts ...Option) {
	WriteError(w, r, http.StatusServiceUnavailable, NewError(ErrCodeUnavailable, message), data, opts...)
}
