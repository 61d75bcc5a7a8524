// Package errors defines the closed taxonomy of transport-layer errors
// shared by every upstream transport implementation (stdio, SSE,
// WebSocket, Streamable HTTP), along with HTTP-status-code mapping and
// retryability, per the table in spec.md §4.3.
package errors

import (
	"errors"
	"fmt"
)

// Kind is a closed set of transport error kinds.
type Kind string

// The full taxonomy. Retryability is fixed per kind (see Retryable),
// except UnknownError, whose retryability is decided by the caller from
// context.
const (
	KindConnectionFailed    Kind = "connection_failed"
	KindConnectionTimeout   Kind = "connection_timeout"
	KindConnectionRefused   Kind = "connection_refused"
	KindConnectionReset     Kind = "connection_reset"
	KindDNSLookupFailed     Kind = "dns_lookup_failed"
	KindRequestTimeout      Kind = "request_timeout"
	KindRateLimited         Kind = "rate_limited"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindBadGateway          Kind = "bad_gateway"
	KindGatewayTimeout      Kind = "gateway_timeout"
	KindNetworkUnreachable  Kind = "network_unreachable"
	KindHostUnreachable     Kind = "host_unreachable"
	KindServerError         Kind = "server_error"
	KindSSLHandshakeFailed  Kind = "ssl_handshake_failed"
	KindProtocolError       Kind = "protocol_error"
	KindInvalidResponse     Kind = "invalid_response"
	KindTooManyRedirects    Kind = "too_many_redirects"
	KindInvalidURL          Kind = "invalid_url"
	KindAuthenticationError Kind = "authentication_failed"
	KindUnknownError        Kind = "unknown_error"
	// KindTransportClosed is raised to pending callers when close() rejects
	// every outstanding request (spec.md §7, "-32001 Transport closed").
	KindTransportClosed Kind = "transport_closed"
	// KindConnectionClosed is a clean, expected shutdown (e.g. WebSocket
	// close code 1000) — never retryable, per spec.md §4.7.
	KindConnectionClosed Kind = "connection_closed"
)

var retryableByKind = map[Kind]bool{
	KindConnectionFailed:   true,
	KindConnectionTimeout:  true,
	KindConnectionRefused:  true,
	KindConnectionReset:    true,
	KindDNSLookupFailed:    true,
	KindRequestTimeout:     true,
	KindRateLimited:        true,
	KindServiceUnavailable: true,
	KindBadGateway:         true,
	KindGatewayTimeout:     true,
	KindNetworkUnreachable: true,
	KindHostUnreachable:    true,
	KindServerError:        true,

	KindSSLHandshakeFailed:  false,
	KindProtocolError:       false,
	KindInvalidResponse:     false,
	KindTooManyRedirects:    false,
	KindInvalidURL:          false,
	KindAuthenticationError: false,
	KindTransportClosed:     false,
	KindConnectionClosed:    false,
}

// TransportError is the typed error crossing the transport/kernel
// boundary. It always carries a Kind and a Retryable verdict.
type TransportError struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &TransportError{Kind: K}) to match on Kind alone.
func (e *TransportError) Is(target error) bool {
	var t *TransportError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs a TransportError for kind, looking up retryability from
// the static table. For KindUnknownError, retryable defaults to false;
// use NewUnknown to set it explicitly from context.
func New(kind Kind, message string, cause error) *TransportError {
	return &TransportError{
		Kind:      kind,
		Message:   message,
		Retryable: retryableByKind[kind],
		Cause:     cause,
	}
}

// NewUnknown builds a KindUnknownError with an explicit retryable verdict,
// since the base taxonomy can't decide it statically.
func NewUnknown(message string, cause error, retryable bool) *TransportError {
	return &TransportError{Kind: KindUnknownError, Message: message, Retryable: retryable, Cause: cause}
}

// Wrap ensures err is a *TransportError, wrapping any other error as
// KindUnknownError (mirrors BaseClientTransport.handleConnectionError).
func Wrap(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return NewUnknown(err.Error(), err, false)
}

// FromHTTPStatus maps an HTTP status code to a TransportError per the
// table in spec.md §4.3.
func FromHTTPStatus(status int, message string) *TransportError {
	switch status {
	case 401, 403:
		return New(KindAuthenticationError, message, nil)
	case 408:
		return New(KindRequestTimeout, message, nil)
	case 429:
		return New(KindRateLimited, message, nil)
	case 502:
		return New(KindBadGateway, message, nil)
	case 503:
		return New(KindServiceUnavailable, message, nil)
	case 504:
		return New(KindGatewayTimeout, message, nil)
	default:
		if status >= 500 && status < 600 {
			return New(KindServerError, message, nil)
		}
		retryable := status == 408 || status == 429
		return NewUnknown(message, nil, retryable)
	}
}
