// Package secret retrieves secrets from SSM Parameter Store or environment
// variables. Values may additionally be KMS-sealed.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ErrNotFound is returned when a secret does not exist or is empty.
var ErrNotFound = errors.New("secret not found")

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Decrypter opens a sealed secret value.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Resolver retrieves secret values by name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver fetches secrets from AWS Systems Manager Parameter Store.
type SSMResolver struct {
	client SSMClient
}

// NewSSMResolver returns a Resolver backed by SSM Parameter Store.
func NewSSMResolver(client SSMClient) Resolver {
	return &SSMResolver{client: client}
}

// GetSecret retrieves a SecureString parameter from SSM with decryption.
func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var missing *ssmtypes.ParameterNotFound
		if errors.As(err, &missing) {
			return "", fmt.Errorf("ssm parameter %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", fmt.Errorf("ssm parameter %q has no value: %w", name, ErrNotFound)
	}
	return *out.Parameter.Value, nil
}

// EnvResolver fetches secrets from environment variables.
// "/sinergia/google-service-account-credentials" is read from
// GOOGLE_SERVICE_ACCOUNT_CREDENTIALS.
type EnvResolver struct {
	lookup func(string) (string, bool)
}

// NewEnvResolver returns a Resolver that reads from environment variables.
func NewEnvResolver() Resolver {
	return &EnvResolver{lookup: os.LookupEnv}
}

// GetSecret reads from the environment variable derived from the parameter name.
func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := paramNameToEnvVar(name)
	val, ok := r.lookup(envName)
	if !ok || val == "" {
		return "", fmt.Errorf("environment variable %q (from param %q) is not set: %w", envName, name, ErrNotFound)
	}
	return val, nil
}

// DecryptingResolver opens KMS-sealed values returned by another Resolver.
type DecryptingResolver struct {
	inner     Resolver
	decrypter Decrypter
}

// NewDecryptingResolver wraps inner so every value is passed through decrypter.
func NewDecryptingResolver(inner Resolver, decrypter Decrypter) Resolver {
	return &DecryptingResolver{inner: inner, decrypter: decrypter}
}

// GetSecret resolves name and decrypts the sealed value.
func (r *DecryptingResolver) GetSecret(ctx context.Context, name string) (string, error) {
	sealed, err := r.inner.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}
	plain, err := r.decrypter.Decrypt(ctx, sealed)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %q: %w", name, err)
	}
	return plain, nil
}

// paramNameToEnvVar converts an SSM parameter name to an environment variable name.
// "/sinergia/jwt-secret" -> "JWT_SECRET"
func paramNameToEnvVar(name string) string {
	parts := strings.Split(name, "/")
	last := parts[len(parts)-1]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}
