package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/adapter/dynamo"
	"github.com/sinergia/backend/internal/adapter/googlesheets"
	"github.com/sinergia/backend/internal/adapter/memory"
	"github.com/sinergia/backend/internal/adapter/sqlite"
	"github.com/sinergia/backend/internal/advisor"
	"github.com/sinergia/backend/internal/auth"
	"github.com/sinergia/backend/internal/config"
	"github.com/sinergia/backend/internal/crypto"
	"github.com/sinergia/backend/internal/handler"
	"github.com/sinergia/backend/internal/ingest"
	"github.com/sinergia/backend/internal/markdown"
	"github.com/sinergia/backend/internal/secret"
	"github.com/sinergia/backend/internal/synclock"
)

const (
	allowHeaders = "authorization, x-client-info, apikey, content-type"
	allowMethods = "GET,POST,OPTIONS"
)

// App holds the dependencies for the Lambda function.
type App struct {
	syncHandler    *handler.SyncHandler
	advisorHandler *handler.AdvisorHandler
	ingest         *ingest.Service
	originSecret   string
	logger         *zap.Logger
	closers        []func() error
}

// Option configures an App built with New.
type Option func(*App)

// WithOriginSecret requires every request to carry X-Origin-Verify.
func WithOriginSecret(secret string) Option {
	return func(a *App) { a.originSecret = secret }
}

// New assembles an App from ready handlers.
func New(svc *ingest.Service, syncHandler *handler.SyncHandler, advisorHandler *handler.AdvisorHandler, logger *zap.Logger, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		syncHandler:    syncHandler,
		advisorHandler: advisorHandler,
		ingest:         svc,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewApp initializes the application dependencies from cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if cfg.DevMode {
		resolver = secret.NewEnvResolver()
		logger.Info("using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		logger.Info("using SSMResolver (SSM Parameter Store)")
	}

	credentialResolver := resolver
	if cfg.CredentialsKMSKeyID != "" {
		var decrypter crypto.Encryptor
		if cfg.DevMode {
			decrypter = crypto.NewMockEncryptor()
		} else {
			decrypter = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.CredentialsKMSKeyID)
		}
		credentialResolver = secret.NewDecryptingResolver(resolver, decrypter)
	}

	jwtSecret, err := resolver.GetSecret(ctx, cfg.JWTSecretParam)
	if err != nil {
		logger.Warn("failed to resolve JWT secret", zap.String("param", cfg.JWTSecretParam), zap.Error(err))
		if cfg.DevMode {
			jwtSecret = "default-dev-secret"
		}
	}

	var originSecret string
	if !cfg.DevMode {
		originSecret, err = resolver.GetSecret(ctx, cfg.APIGatewaySecretParam)
		if err != nil {
			logger.Warn("failed to resolve API gateway secret, origin check disabled", zap.Error(err))
		}
	}

	// ---------- Sheets pipeline ----------
	providerOpts := []auth.Option{
		auth.WithHTTPClient(&http.Client{Timeout: cfg.SheetsTimeout}),
		auth.WithRetry(cfg.SheetsMaxRetries, nil),
		auth.WithLogger(logger),
	}
	if cfg.TokenCache {
		providerOpts = append(providerOpts, auth.WithTokenCache())
	}
	tokens := auth.NewServiceAccountTokenSource(
		auth.NewSecretCredentialSource(credentialResolver, cfg.ServiceAccountParam),
		auth.NewTokenProvider(providerOpts...),
	)
	reader := googlesheets.NewReader(tokens, googlesheets.Config{
		Endpoint:     cfg.SheetsEndpoint,
		DefaultRange: cfg.DefaultRange,
		Timeout:      cfg.SheetsTimeout,
		MaxRetries:   cfg.SheetsMaxRetries,
		Logger:       logger,
	})

	a := &App{logger: logger, originSecret: originSecret}

	store, locker, err := a.openStore(cfg, dynamodb.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	logger.Info("row store ready", zap.String("backend", cfg.RowStore), zap.String("scope_policy", string(cfg.ScopePolicy)))

	a.ingest = ingest.NewService(reader, store,
		ingest.WithLocker(locker),
		ingest.WithPolicy(cfg.ScopePolicy),
		ingest.WithLogger(logger),
	)
	a.syncHandler = handler.NewSyncHandler(a.ingest, jwtSecret, logger)

	// ---------- Advisor ----------
	catalog, err := advisor.LoadCatalog(cfg.AdvisorPromptsFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	var gen advisor.Generator
	if apiKey, err := resolver.GetSecret(ctx, cfg.GenAIAPIKeyParam); err != nil {
		logger.Warn("advisor disabled: API key not resolved", zap.String("param", cfg.GenAIAPIKeyParam), zap.Error(err))
	} else if g, err := advisor.NewGenAIGenerator(ctx, apiKey); err != nil {
		logger.Warn("advisor disabled", zap.Error(err))
	} else {
		gen = g
	}
	a.advisorHandler = handler.NewAdvisorHandler(advisor.New(gen, catalog, markdown.NewRenderer(), logger), logger)

	return a, nil
}

func (a *App) openStore(cfg *config.Config, client *dynamodb.Client) (adapter.RowStore, synclock.Locker, error) {
	lease := synclock.WithTTL(synclock.LeaseFor(cfg.SheetsTimeout, cfg.SheetsMaxRetries))
	switch cfg.RowStore {
	case config.StoreSQLite:
		db, err := sqlite.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := sqlite.RunMigrations(db.Writer); err != nil {
			db.Close()
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		return sqlite.NewRowStore(db), synclock.NewMemoryLocker(lease), nil
	case config.StoreMemory:
		return memory.NewRowStore(), synclock.NewMemoryLocker(lease), nil
	default:
		return dynamo.NewRowStore(client, cfg.SheetRowsTable, a.logger),
			synclock.NewDynamoLocker(client, cfg.SyncLocksTable, lease), nil
	}
}

// Ingest returns the sync service.
func (a *App) Ingest() *ingest.Service {
	return a.ingest
}

// Close releases the row store.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (a *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	a.logger.Debug("request", zap.String("method", method), zap.String("path", path))

	// CORS Preflight
	if method == http.MethodOptions {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusOK}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	if a.originSecret != "" {
		if header(req, "X-Origin-Verify") != a.originSecret {
			a.logger.Warn("security block: missing or invalid X-Origin-Verify header", zap.String("path", path))
			return corsResponse(jsonError(http.StatusForbidden, "Forbidden: Access denied")), nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	path = strings.TrimPrefix(path, "/api")

	switch {
	case (path == "/sync" || path == "/sync-sheet-data") && method == http.MethodPost:
		return corsResponse(a.must(a.syncHandler.Sync(ctx, req))), nil
	case (path == "/sheets" || path == "/google-sheets") && method == http.MethodPost:
		return corsResponse(a.must(a.syncHandler.ReadSheet(ctx, req))), nil
	case path == "/rows" && method == http.MethodGet:
		return corsResponse(a.must(a.syncHandler.ListRows(ctx, req))), nil
	case path == "/advisor/analysis" && method == http.MethodPost:
		return corsResponse(a.must(a.advisorHandler.Analysis(ctx, req))), nil
	case path == "/advisor/evaluation" && method == http.MethodPost:
		return corsResponse(a.must(a.advisorHandler.Evaluation(ctx, req))), nil
	}

	return corsResponse(jsonError(http.StatusNotFound, fmt.Sprintf("Not Found: %s %s", method, path))), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = "*"
	resp.Headers["Access-Control-Allow-Headers"] = allowHeaders
	resp.Headers["Access-Control-Allow-Methods"] = allowMethods
	return resp
}

// must unwraps a handler response, turning an error into a 500.
func (a *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		a.logger.Error("handler error", zap.Error(err))
		return jsonError(http.StatusInternalServerError, "Internal Server Error")
	}
	return resp
}

func jsonError(status int, msg string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(handler.ErrorBody{Error: msg})
	if err != nil {
		body = []byte(`{"error":"Internal Server Error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
