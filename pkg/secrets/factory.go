package secrets

import (
	"context"
	"fmt"
)

// Config selects the secret manager used to resolve "secret:" references.
type Config struct {
	Type    string      `yaml:"type" json:"type"` // env, vault, openbao, aws, azure
	Vault   KVConfig    `yaml:"vault" json:"vault"`
	OpenBao KVConfig    `yaml:"openbao" json:"openbao"`
	AWS     AWSConfig   `yaml:"aws" json:"aws"`
	Azure   AzureConfig `yaml:"azure" json:"azure"`
	Env     EnvConfig   `yaml:"env" json:"env"`
}

type KVConfig struct {
	Address string `yaml:"address" json:"address"`
	Token   string `yaml:"token" json:"token"`
	Mount   string `yaml:"mount" json:"mount"`
}

type AWSConfig struct {
	Region string `yaml:"region" json:"region"`
}

type AzureConfig struct {
	VaultURL string `yaml:"vault_url" json:"vault_url"`
}

type EnvConfig struct {
	Prefix string `yaml:"prefix" json:"prefix"`
}

// NewManager creates the configured manager. Remote managers fall back to the
// environment so a key can be overridden locally.
func NewManager(ctx context.Context, cfg Config) (Manager, error) {
	env := &EnvManager{Prefix: cfg.Env.Prefix}

	var remote Manager
	var err error
	switch cfg.Type {
	case "", "env":
		return env, nil
	case "vault":
		remote, err = NewVaultManager(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.Mount)
	case "openbao":
		remote, err = NewOpenBaoManager(cfg.OpenBao.Address, cfg.OpenBao.Token, cfg.OpenBao.Mount)
	case "aws":
		remote, err = NewAWSSecretsManager(ctx, cfg.AWS.Region)
	case "azure":
		remote, err = NewAzureKeyVaultManager(cfg.Azure.VaultURL)
	default:
		return nil, fmt.Errorf("unsupported secret manager type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return &ChainManager{Managers: []Manager{env, remote}}, nil
}
