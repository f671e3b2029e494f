// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sinergia/backend/internal/ingest"
)

// Row store backends.
const (
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	DevMode bool

	RowStore       string
	SheetRowsTable string
	SyncLocksTable string
	SQLitePath     string
	ScopePolicy    ingest.ScopePolicy

	DefaultRange     string
	SheetsEndpoint   string
	SheetsTimeout    time.Duration
	SheetsMaxRetries int
	TokenCache       bool

	// Secret parameter names, resolved through SSM (or env vars in DEV_MODE).
	ServiceAccountParam   string
	JWTSecretParam        string
	GenAIAPIKeyParam      string
	APIGatewaySecretParam string

	// CredentialsKMSKeyID enables KMS decryption of the service-account secret.
	CredentialsKMSKeyID string

	AdvisorPromptsFile string
	LogLevel           string
	ListenAddr         string
}

// Load reads the configuration. Unset variables take their defaults; values
// that fail to parse are reported.
func Load() (*Config, error) {
	devMode, err := boolEnv("DEV_MODE", false)
	if err != nil {
		return nil, err
	}

	defaultStore := StoreDynamoDB
	if devMode {
		defaultStore = StoreMemory
	}
	rowStore := strings.ToLower(stringEnv("ROW_STORE", defaultStore))
	switch rowStore {
	case StoreDynamoDB, StoreSQLite, StoreMemory:
	default:
		return nil, fmt.Errorf("ROW_STORE has unknown backend %q", rowStore)
	}

	policy, err := ingest.ParseScopePolicy(os.Getenv("SYNC_SCOPE"))
	if err != nil {
		return nil, fmt.Errorf("SYNC_SCOPE: %w", err)
	}

	timeout := 15 * time.Second
	if v, ok := os.LookupEnv("SHEETS_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SHEETS_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		timeout = parsed
	}

	maxRetries := 2
	if v, ok := os.LookupEnv("SHEETS_MAX_RETRIES"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("SHEETS_MAX_RETRIES has invalid value %q", v)
		}
		maxRetries = parsed
	}

	tokenCache, err := boolEnv("SHEETS_TOKEN_CACHE", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		DevMode:               devMode,
		RowStore:              rowStore,
		SheetRowsTable:        stringEnv("SHEET_ROWS_TABLE", "SheetRows"),
		SyncLocksTable:        stringEnv("SYNC_LOCKS_TABLE", "SyncLocks"),
		SQLitePath:            stringEnv("SQLITE_PATH", "sinergia.db"),
		ScopePolicy:           policy,
		DefaultRange:          stringEnv("DEFAULT_SHEET_RANGE", "A1:Z1000"),
		SheetsEndpoint:        os.Getenv("SHEETS_API_ENDPOINT"),
		SheetsTimeout:         timeout,
		SheetsMaxRetries:      maxRetries,
		TokenCache:            tokenCache,
		ServiceAccountParam:   stringEnv("SERVICE_ACCOUNT_PARAM", "/sinergia/google-service-account-credentials"),
		JWTSecretParam:        stringEnv("JWT_SECRET_PARAM", "/sinergia/jwt-secret"),
		GenAIAPIKeyParam:      stringEnv("GENAI_API_KEY_PARAM", "/sinergia/gemini-api-key"),
		APIGatewaySecretParam: stringEnv("API_GATEWAY_SECRET_PARAM", "/sinergia/api-gateway-secret"),
		CredentialsKMSKeyID:   os.Getenv("CREDENTIALS_KMS_KEY_ID"),
		AdvisorPromptsFile:    os.Getenv("ADVISOR_PROMPTS_FILE"),
		LogLevel:              stringEnv("LOG_LEVEL", "info"),
		ListenAddr:            stringEnv("LISTEN_ADDR", ":8080"),
	}, nil
}

func stringEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	return parsed, nil
}
