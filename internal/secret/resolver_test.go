package secret

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMClient struct {
	params map[string]string
}

func (f *fakeSSMClient) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	val, ok := f.params[*input.Name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("parameter not found")}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:  input.Name,
			Value: aws.String(val),
		},
	}, nil
}

type prefixDecrypter struct{}

func (prefixDecrypter) Decrypt(_ context.Context, ciphertext string) (string, error) {
	plain, ok := strings.CutPrefix(ciphertext, "sealed:")
	if !ok {
		return "", errors.New("not sealed")
	}
	return plain, nil
}

func TestSSMResolver_GetSecret_Success(t *testing.T) {
	client := &fakeSSMClient{
		params: map[string]string{
			"/sinergia/jwt-secret": "super-secret-value",
		},
	}
	resolver := NewSSMResolver(client)

	val, err := resolver.GetSecret(context.Background(), "/sinergia/jwt-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "super-secret-value" {
		t.Fatalf("expected %q, got %q", "super-secret-value", val)
	}
}

func TestSSMResolver_GetSecret_NotFound(t *testing.T) {
	resolver := NewSSMResolver(&fakeSSMClient{params: map[string]string{}})

	_, err := resolver.GetSecret(context.Background(), "/sinergia/nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSSMResolver_GetSecret_EmptyValue(t *testing.T) {
	resolver := NewSSMResolver(&fakeSSMClient{params: map[string]string{"/sinergia/empty": ""}})

	_, err := resolver.GetSecret(context.Background(), "/sinergia/empty")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty value, got %v", err)
	}
}

func TestEnvResolver_GetSecret_Success(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_CREDENTIALS", `{"client_email":"a@b"}`)

	val, err := NewEnvResolver().GetSecret(context.Background(), "/sinergia/google-service-account-credentials")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != `{"client_email":"a@b"}` {
		t.Fatalf("unexpected value %q", val)
	}
}

func TestEnvResolver_GetSecret_NotSet(t *testing.T) {
	resolver := &EnvResolver{lookup: func(string) (string, bool) { return "", false }}

	_, err := resolver.GetSecret(context.Background(), "/sinergia/nonexistent-secret")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing env var, got %v", err)
	}
}

func TestDecryptingResolver(t *testing.T) {
	inner := NewSSMResolver(&fakeSSMClient{params: map[string]string{
		"/sinergia/sealed": "sealed:plain-value",
		"/sinergia/raw":    "plain-value",
	}})
	resolver := NewDecryptingResolver(inner, prefixDecrypter{})
	ctx := context.Background()

	val, err := resolver.GetSecret(ctx, "/sinergia/sealed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "plain-value" {
		t.Errorf("expected %q, got %q", "plain-value", val)
	}

	if _, err := resolver.GetSecret(ctx, "/sinergia/raw"); err == nil {
		t.Error("expected decrypt error for unsealed value")
	}

	if _, err := resolver.GetSecret(ctx, "/sinergia/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound to pass through, got %v", err)
	}
}

func TestParamNameToEnvVar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/sinergia/jwt-secret", "JWT_SECRET"},
		{"/sinergia/google-service-account-credentials", "GOOGLE_SERVICE_ACCOUNT_CREDENTIALS"},
		{"/sinergia/genai-api-key", "GENAI_API_KEY"},
		{"plain-name", "PLAIN_NAME"},
	}

	for _, tc := range tests {
		got := paramNameToEnvVar(tc.input)
		if got != tc.expected {
			t.Errorf("paramNameToEnvVar(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
