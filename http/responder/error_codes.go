package responder

import apperrors "github.com/leeforge/pluginhub/errors"

// Codes for failures raised by the HTTP layer itself. Domain failures use
// the codes of the errors package.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeBindFailed       = "BIND_FAILED"
	ErrCodeValidationFailed = apperrors.CodeValidationFailed
	ErrCodeNotFound         = apperrors.CodeNotFound
	ErrCodeRouteNotFound    = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalServer   = apperrors.CodeInternalError
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
)

var errorMessages = map[string]string{
	ErrCodeBadRequest:       "Bad Request",
	ErrCodeBindFailed:       "Invalid Request Body",
	ErrCodeValidationFailed: "Validation Failed",
	ErrCodeNotFound:         "Resource Not Found",
	ErrCodeRouteNotFound:    "Route Not Found",
	ErrCodeMethodNotAllowed: "Method Not Allowed",
	ErrCodeUnauthorized:     "Unauthorized",
	ErrCodeForbidden:        "Forbidden",
	ErrCodeInternalServer:   "Internal Server Error",
	ErrCodeUnavailable:      "Service Unavailable",
}

// GetErrorMessage returns the default message for an error code
func GetErrorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown Error"
}

// NewError creates a new Error with code and message
func NewError(code string, message string) Error {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithDetails creates a new Error with code, message and details
func NewErrorWithDetails(code string, message string, details any) Error {
	err := NewError(code, message)
	err.Details = details
	return err
}

// ErrorFromApp converts a domain error into the wire error. Unknown errors
// are reported as internal without leaking their text.
func ErrorFromApp(err error) (int, Error) {
	appErr := apperrors.FromError(err)
	if appErr.Type == apperrors.ErrorTypeUnknown {
		return appErr.Status(), NewError(ErrCodeInternalServer, "")
	}
	out := Error{
		Code:    appErr.Code,
		Type:    string(appErr.Type),
		Message: appErr.Message,
	}
	if len(appErr.Details) > 0 {
		out.Details = appErr.Details
	}
	if out.Code == "" {
		out.Code = ErrCodeInternalServer
	}
	return appErr.Status(), out
}
