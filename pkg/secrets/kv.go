package secrets

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// KVManager reads KV v2 secrets from HashiCorp Vault or OpenBao, which speak the same API.
// Keys have the form "path/to/secret#field"; field defaults to "value".
type KVManager struct {
	client  *api.Client
	mount   string
	product string
}

func NewVaultManager(address, token, mount string) (*KVManager, error) {
	return newKVManager("vault", address, token, mount)
}

func NewOpenBaoManager(address, token, mount string) (*KVManager, error) {
	return newKVManager("openbao", address, token, mount)
}

func newKVManager(product, address, token, mount string) (*KVManager, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", product, err)
	}
	if token != "" {
		client.SetToken(token)
	}
	if mount == "" {
		mount = "secret"
	}
	return &KVManager{client: client, mount: mount, product: product}, nil
}

func (m *KVManager) Get(ctx context.Context, key string) (string, error) {
	path, field := splitField(key)
	if field == "" {
		field = "value"
	}

	secret, err := m.client.KVv2(m.mount).Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from %s: %w", path, m.product, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	val, ok := secret.Data[field]
	if !ok {
		return "", fmt.Errorf("%w: field %s in %s", ErrNotFound, field, path)
	}
	return fmt.Sprintf("%v", val), nil
}
