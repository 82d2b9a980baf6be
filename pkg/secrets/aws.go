package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"
)

// AWSSecretsManager reads from AWS Secrets Manager. A key "name#path" selects a
// field of a JSON secret string using a gjson path.
type AWSSecretsManager struct {
	client *secretsmanager.Client
}

func NewAWSSecretsManager(ctx context.Context, region string) (*AWSSecretsManager, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &AWSSecretsManager{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (m *AWSSecretsManager) Get(ctx context.Context, key string) (string, error) {
	name, field := splitField(key)

	result, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from aws: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}
	return selectField(*result.SecretString, name, field)
}

// selectField extracts field from a JSON document, or returns doc when field is empty.
func selectField(doc, name, field string) (string, error) {
	if field == "" {
		return doc, nil
	}
	v := gjson.Get(doc, field)
	if !v.Exists() {
		return "", fmt.Errorf("%w: field %s in %s", ErrNotFound, field, name)
	}
	return v.String(), nil
}
