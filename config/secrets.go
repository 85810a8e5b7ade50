package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

// Secret keys looked up in Vault and AWS Secrets Manager
const (
	SecretJWT        = "jwt_secret"
	SecretMongoDBURI = "mongodb_uri"
)

// SecretManager retrieves named secrets from an external store
type SecretManager interface {
	GetSecret(key string) (string, error)
}

// VaultSecretManager retrieves secrets from a HashiCorp Vault KV path
type VaultSecretManager struct {
	path   string
	client *api.Client
}

// NewVaultSecretManager creates a Vault-backed SecretManager
func NewVaultSecretManager(config *Config) (*VaultSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: config.Secrets.Vault.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	token := config.Secrets.Vault.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultSecretManager{path: config.Secrets.Vault.Path, client: client}, nil
}

// GetSecret reads key from the configured Vault path
func (v *VaultSecretManager) GetSecret(key string) (string, error) {
	secret, err := v.client.Logical().Read(v.path)
	if err != nil {
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret not found at path %s", v.path)
	}

	// KV v2 nests the payload under "data"
	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %s not found in Vault secret", key)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key %s is not a string", key)
	}
	return strValue, nil
}

// AWSSecretManager retrieves secrets from a JSON secret in AWS Secrets Manager
type AWSSecretManager struct {
	secretID string
	client   *secretsmanager.SecretsManager
}

// NewAWSSecretManager creates an AWS-backed SecretManager. Static credentials
// are used when configured, otherwise the default credential chain.
func NewAWSSecretManager(config *Config) (*AWSSecretManager, error) {
	awsConfig := &aws.Config{Region: aws.String(config.Secrets.AWS.Region)}
	if config.Secrets.AWS.AccessKey != "" && config.Secrets.AWS.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.Secrets.AWS.AccessKey,
			config.Secrets.AWS.SecretKey,
			"",
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &AWSSecretManager{
		secretID: config.Secrets.AWS.SecretID,
		client:   secretsmanager.New(sess),
	}, nil
}

// GetSecret reads key from the configured JSON secret
func (a *AWSSecretManager) GetSecret(key string) (string, error) {
	result, err := a.client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from AWS: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("AWS secret %s has no string value", a.secretID)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return "", fmt.Errorf("failed to parse AWS secret JSON: %w", err)
	}

	value, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("key %s not found in AWS secret", key)
	}
	return value, nil
}

// NewSecretManager creates the secret manager selected by secrets.provider.
// The env provider returns nil: values already come from YETI_* variables.
func NewSecretManager(config *Config) (SecretManager, error) {
	switch config.Secrets.Provider {
	case "", "env":
		return nil, nil
	case "vault":
		return NewVaultSecretManager(config)
	case "aws":
		return NewAWSSecretManager(config)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Secrets.Provider)
	}
}

// LoadSecrets fills the JWT secret, and the MongoDB URI when present, from
// the configured external provider
func LoadSecrets(config *Config) error {
	manager, err := NewSecretManager(config)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	if manager == nil {
		return nil
	}
	return applySecrets(config, manager)
}

func applySecrets(config *Config, manager SecretManager) error {
	jwtSecret, err := manager.GetSecret(SecretJWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT secret: %w", err)
	}
	config.Auth.JWTSecret = jwtSecret

	// Optional: the URI may live in plain config
	if uri, err := manager.GetSecret(SecretMongoDBURI); err == nil && uri != "" {
		config.MongoDB.URI = uri
	}
	return nil
}
