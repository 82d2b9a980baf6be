package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/courier"
)

// Entry is one registry slot. Its position in the registry is its fallback priority.
type Entry struct {
	Label   string
	Channel courier.Channel
}

// Registry is the ordered, immutable list of channels tried for every submission.
type Registry struct {
	entries []Entry
}

// NewRegistry validates entries and fixes their order.
func NewRegistry(entries ...Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, errors.New("registry needs at least one channel")
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		label := strings.TrimSpace(e.Label)
		if label == "" {
			return nil, fmt.Errorf("channel %d has no label", i)
		}
		if e.Channel == nil {
			return nil, fmt.Errorf("channel %q is nil", label)
		}
		if seen[label] {
			return nil, fmt.Errorf("duplicate channel label %q", label)
		}
		seen[label] = true
	}
	return &Registry{entries: append([]Entry(nil), entries...)}, nil
}

// Entries returns a copy of the entries in priority order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) Labels() []string {
	labels := make([]string, len(r.entries))
	for i, e := range r.entries {
		labels[i] = e.Label
	}
	return labels
}

// SetLogger passes logger on to every channel that accepts one.
func (r *Registry) SetLogger(logger courier.Logger) {
	for _, e := range r.entries {
		if l, ok := e.Channel.(courier.Loggable); ok {
			l.SetLogger(logger)
		}
	}
}

// Close closes every channel and returns the last error.
func (r *Registry) Close() error {
	var lastErr error
	for _, e := range r.entries {
		if err := e.Channel.Close(); err != nil {
			lastErr = fmt.Errorf("close %s: %w", e.Label, err)
		}
	}
	return lastErr
}
