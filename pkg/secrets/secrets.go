package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Prefix marks a config value that must be resolved through a Manager.
const Prefix = "secret:"

// ErrNotFound is returned when no manager knows the key.
var ErrNotFound = errors.New("secret not found")

// Manager looks up credentials referenced from the channel config.
type Manager interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvManager resolves secrets from environment variables, trying Prefix+key first.
type EnvManager struct {
	Prefix string
}

func (m *EnvManager) Get(ctx context.Context, key string) (string, error) {
	if m.Prefix != "" {
		if v := os.Getenv(m.Prefix + key); v != "" {
			return v, nil
		}
	}
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// ChainManager asks each manager in turn and returns the first value found.
type ChainManager struct {
	Managers []Manager
}

func (m *ChainManager) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, mgr := range m.Managers {
		val, err := mgr.Get(ctx, key)
		if err == nil && val != "" {
			return val, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return "", errors.Join(errs...)
}

// IsReference reports whether value names a secret.
func IsReference(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Resolve returns value unchanged unless it is a reference, in which case the
// referenced secret is fetched. An unresolvable reference is an error.
func Resolve(ctx context.Context, mgr Manager, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, Prefix)
	if mgr == nil {
		return "", fmt.Errorf("no secret manager configured for %q", key)
	}
	val, err := mgr.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret %q: %w", key, err)
	}
	return val, nil
}

// splitField splits "name#field" into its parts.
func splitField(key string) (name, field string) {
	if i := strings.LastIndexByte(key, '#'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}
