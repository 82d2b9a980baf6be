package courier

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a channel attempt failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNetworkUnreachable
	FailureTimeout
	FailureServerRejected
	FailureUnsupported
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNetworkUnreachable:
		return "network_unreachable"
	case FailureTimeout:
		return "timeout"
	case FailureServerRejected:
		return "server_rejected"
	case FailureUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// Outcome is the result of a single channel attempt.
// Locator is empty when the channel has nothing to identify the stored artifact.
// StatusCode is set only for FailureServerRejected.
type Outcome struct {
	Success    bool        `json:"success"`
	Locator    string      `json:"locator,omitempty"`
	Kind       FailureKind `json:"kind,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Succeeded returns a success outcome.
func Succeeded(locator string) Outcome {
	return Outcome{Success: true, Locator: locator}
}

// Failed returns a failure outcome of the given kind.
func Failed(kind FailureKind, format string, args ...interface{}) Outcome {
	return Outcome{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Rejected returns a ServerRejected failure carrying the HTTP status code.
func Rejected(statusCode int, message string) Outcome {
	return Outcome{Kind: FailureServerRejected, StatusCode: statusCode, Message: message}
}

// FailureFromError maps a transport error onto a failure outcome.
func FailureFromError(err error) Outcome {
	if err == nil {
		return Failed(FailureNetworkUnreachable, "unknown transport error")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failed(FailureTimeout, "%v", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Failed(FailureTimeout, "%v", err)
	}
	return Failed(FailureNetworkUnreachable, "%v", err)
}

func (o Outcome) String() string {
	if o.Success {
		if o.Locator == "" {
			return "success"
		}
		return "success (" + o.Locator + ")"
	}
	if o.Kind == FailureServerRejected {
		return fmt.Sprintf("server_rejected(%d)", o.StatusCode)
	}
	return o.Kind.String()
}

// MarshalText lets the failure kind appear by name in JSON output.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
