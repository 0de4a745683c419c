package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/sheepe/pterogo/pkg/protocol"
)

// ErrUnverified is returned by resource operations when the client has not
// completed Verify.
var ErrUnverified = errors.New("client is not verified")

// APIError is returned when the panel answered with a status the caller did
// not declare as success.
type APIError struct {
	Status     int
	StatusText string
	Detail     protocol.ErrorDetail
}

func (e *APIError) Error() string {
	switch d := e.Detail.(type) {
	case protocol.StatusErrorDetail:
		return fmt.Sprintf("%s (%s): %s", d.Code, d.Status, d.Detail)
	case protocol.SourceErrorDetail:
		return d.Detail
	default:
		return fmt.Sprintf("An unexpected error occurred (%d): %s", e.Status, e.StatusText)
	}
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// TransportKind tells why a request never produced a usable response.
type TransportKind int

const (
	// Unreachable covers dial and I/O failures that are neither DNS nor refusal.
	Unreachable TransportKind = iota
	// InvalidKey is an HTTP 403 from the panel.
	InvalidKey
	// ConnectionRefused means nothing listens on the panel address.
	ConnectionRefused
	// HostNotFound means the panel host did not resolve.
	HostNotFound
)

func (k TransportKind) String() string {
	switch k {
	case InvalidKey:
		return "invalid API key"
	case ConnectionRefused:
		return "connection refused"
	case HostNotFound:
		return "host not found"
	default:
		return "panel unreachable"
	}
}

// TransportError is returned when the panel could not be reached or
// rejected the API key. The response body, if any, is not inspected.
type TransportError struct {
	Kind TransportKind
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Kind == Unreachable && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Host, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Host)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError checks if an error is a TransportError and returns it.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func classifyTransport(host string, err error) *TransportError {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: Unreachable, Host: host, Err: err}
	case errors.As(err, &dnsErr):
		return &TransportError{Kind: HostNotFound, Host: host, Err: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &TransportError{Kind: ConnectionRefused, Host: host, Err: err}
	default:
		return &TransportError{Kind: Unreachable, Host: host, Err: err}
	}
}
