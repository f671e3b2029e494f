package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spf13/cobra"

	"github.com/sinergia/backend/internal/config"
	"github.com/sinergia/backend/internal/crypto"
)

var keyID string

var sealCmd = &cobra.Command{
	Use:   "seal [credentials.json]",
	Short: "Encrypt a service-account credential file with KMS",
	Long: `Encrypts a Google service-account JSON file and prints the base64
ciphertext, ready to store in the SERVICE_ACCOUNT_PARAM parameter when
CREDENTIALS_KMS_KEY_ID is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeal,
}

// newEncryptor is replaced in tests.
var newEncryptor = func(ctx context.Context, cfg *config.Config, keyID string) (crypto.Encryptor, error) {
	if cfg.DevMode {
		return crypto.NewMockEncryptor(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return crypto.NewKMSService(kms.NewFromConfig(awsCfg), keyID), nil
}

func runSeal(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%s is not valid JSON", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	id := keyID
	if id == "" {
		id = cfg.CredentialsKMSKeyID
	}
	if id == "" && !cfg.DevMode {
		return fmt.Errorf("no KMS key: pass --key-id or set CREDENTIALS_KMS_KEY_ID")
	}

	enc, err := newEncryptor(ctx, cfg, id)
	if err != nil {
		return err
	}
	sealed, err := enc.Encrypt(ctx, string(raw))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return nil
}
