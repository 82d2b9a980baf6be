package secrets

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// AzureKeyVaultManager reads the latest version of a Key Vault secret.
// Like AWS, "name#path" selects a field of a JSON value.
type AzureKeyVaultManager struct {
	client *azsecrets.Client
}

func NewAzureKeyVaultManager(vaultURL string) (*AzureKeyVaultManager, error) {
	if vaultURL == "" {
		return nil, fmt.Errorf("azure vault url is required")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure secrets client: %w", err)
	}
	return &AzureKeyVaultManager{client: client}, nil
}

func (m *AzureKeyVaultManager) Get(ctx context.Context, key string) (string, error) {
	name, field := splitField(key)

	resp, err := m.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get secret from azure: %w", err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %s has no value", name)
	}
	return selectField(*resp.Value, name, field)
}
