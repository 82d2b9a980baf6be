package courier

import (
	"context"
	"time"
)

// Delivery describes how far a channel can actually carry a payload.
type Delivery string

const (
	// DeliveryRemote channels hand the file to a remote party.
	DeliveryRemote Delivery = "remote"
	// DeliveryNotification channels only relay the form metadata.
	DeliveryNotification Delivery = "notification"
	// DeliveryLocal channels never leave the process.
	DeliveryLocal Delivery = "local"
)

// Channel is one concrete way of delivering a payload.
// Attempt must never panic or return a Go error; every failure is reported
// as a Failure outcome.
type Channel interface {
	Attempt(ctx context.Context, p *Payload, timeout time.Duration) Outcome
	Delivery() Delivery
	Close() error
}

// Logger defines the interface for logging in courier.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Loggable is implemented by components that accept a logger after construction.
type Loggable interface {
	SetLogger(logger Logger)
}

// ProgressFunc receives genuine transfer progress as a percentage.
type ProgressFunc func(percent int)

type progressKey struct{}

// WithProgress attaches a transfer-progress reporter to ctx.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFromContext returns the reporter attached to ctx, or a no-op.
func ProgressFromContext(ctx context.Context) ProgressFunc {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		return fn
	}
	return func(int) {}
}
