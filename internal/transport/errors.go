package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrInvalidURL indicates request construction failed before any network
// call was attempted (missing or blank base configuration).
var ErrInvalidURL = errors.New("invalid or missing URL configuration")

// ServerError is a non-2xx registry response translated into a typed error.
type ServerError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("server error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// genericErrorBody is the registry's standard error shape.
type genericErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// authErrorBody is the OAuth-style shape used on 401/403 responses.
type authErrorBody struct {
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

// DecodeServerError translates a non-2xx response body into a ServerError.
// It tries the generic {code,message} shape first, then the OAuth shape for
// 401/403, and falls back to an unknown-error message carrying the status.
func DecodeServerError(statusCode int, body []byte) *ServerError {
	var generic genericErrorBody
	if err := json.Unmarshal(body, &generic); err == nil && generic.Message != "" {
		return &ServerError{StatusCode: statusCode, Code: generic.Code, Message: generic.Message}
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		var auth authErrorBody
		if err := json.Unmarshal(body, &auth); err == nil && auth.Err != "" {
			msg := auth.Err
			if auth.Description != "" {
				msg = auth.Err + ": " + auth.Description
			}
			return &ServerError{StatusCode: statusCode, Message: msg}
		}
	}

	return &ServerError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("unknown server error (status %d)", statusCode),
	}
}

// IsOffline reports whether err is a transport-level network failure rather
// than an HTTP status: DNS resolution failure, refused or dropped
// connection. Callers use this to fall back to cached data.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Timeouts and closed connections surface as url.Error without a
		// wrapped OpError on some platforms.
		return urlErr.Timeout() || urlErr.Temporary()
	}
	return false
}

// IsRateLimited reports whether err is the registry's rate-limit rejection.
func IsRateLimited(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusTooManyRequests
}
