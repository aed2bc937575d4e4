package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies transport failures into the closed taxonomy the
// session controller switches on.
type FailureKind string

const (
	// FailTimeout means the request exceeded the client's fixed deadline.
	FailTimeout FailureKind = "timeout"
	// FailNetwork means no response was received at all.
	FailNetwork FailureKind = "network_unreachable"
	// FailServer means the service responded with status >= 500.
	FailServer FailureKind = "server_fault"
	// FailNotFound means the service responded with status 404.
	FailNotFound FailureKind = "not_found"
	// FailRejected means any other 4xx, or a decoded success=false payload.
	// Message carries the service-provided text when present.
	FailRejected FailureKind = "rejected"
)

// Failure is the typed error every client operation returns on failure.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return string(f.Kind)
}

// AsFailure extracts a Failure from err, or nil if err is not one.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}

// classifyTransport maps an error from http.Client.Do (no response received)
// to the taxonomy.
func classifyTransport(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailTimeout}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Failure{Kind: FailTimeout}
	}
	return &Failure{Kind: FailNetwork, Message: err.Error()}
}

// classifyStatus maps a non-2xx response to the taxonomy. msg is the
// service-provided message decoded from the body, if any.
func classifyStatus(status int, msg string) *Failure {
	switch {
	case status >= 500:
		return &Failure{Kind: FailServer}
	case status == 404:
		return &Failure{Kind: FailNotFound}
	default:
		return &Failure{Kind: FailRejected, Message: msg}
	}
}
