package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
)

const (
	// SpreadsheetsReadOnlyScope is the only scope the assertion requests.
	SpreadsheetsReadOnlyScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	tokenLifetime      = time.Hour
	cacheExpirySkew    = time.Minute
	maxTokenBodyBytes  = 1 << 20

	opAccessToken = "get access token"
)

// TokenProvider exchanges a service-account credential for a bearer token
// using the OAuth2 JWT-bearer grant.
type TokenProvider struct {
	httpClient *http.Client
	now        func() time.Time
	maxRetries uint64
	newBackOff func() backoff.BackOff
	cache      *tokenCache
	logger     *zap.Logger
}

// Option configures a TokenProvider.
type Option func(*TokenProvider)

// WithHTTPClient sets the client used for the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(p *TokenProvider) { p.httpClient = c }
}

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(p *TokenProvider) { p.now = now }
}

// WithRetry sets how many times a transient exchange failure is retried and
// the backoff schedule between attempts.
func WithRetry(maxRetries int, newBackOff func() backoff.BackOff) Option {
	return func(p *TokenProvider) {
		p.maxRetries = uint64(maxRetries)
		if newBackOff != nil {
			p.newBackOff = newBackOff
		}
	}
}

// WithTokenCache reuses tokens per credential until shortly before expiry.
func WithTokenCache() Option {
	return func(p *TokenProvider) { p.cache = &tokenCache{entries: make(map[string]model.AccessToken)} }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *TokenProvider) { p.logger = l }
}

// NewTokenProvider creates a TokenProvider. Without options it uses a 15s
// HTTP timeout, two retries with exponential backoff and no cache.
func NewTokenProvider(opts ...Option) *TokenProvider {
	p := &TokenProvider{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		maxRetries: 2,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetAccessToken signs an RS256 assertion for cred and exchanges it at the
// credential's token endpoint.
func (p *TokenProvider) GetAccessToken(ctx context.Context, cred *model.ServiceAccountCredential) (model.AccessToken, error) {
	if cred == nil {
		return model.AccessToken{}, adapter.NewError(adapter.KindConfiguration, opAccessToken, "service account credential is not configured", nil)
	}
	if err := validateCredential(cred); err != nil {
		return model.AccessToken{}, err
	}

	now := p.now()
	var fingerprint string
	if p.cache != nil {
		fingerprint = credentialFingerprint(cred)
		if tok, ok := p.cache.get(fingerprint, now); ok {
			return tok, nil
		}
	}

	der, err := NormalizePrivateKey(cred.PrivateKey)
	if err != nil {
		return model.AccessToken{}, adapter.NewError(adapter.KindConfiguration, opAccessToken, "malformed private key: "+err.Error(), err)
	}
	key, err := parseSigningKey(der)
	if err != nil {
		return model.AccessToken{}, adapter.NewError(adapter.KindConfiguration, opAccessToken, "malformed private key: "+err.Error(), err)
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   cred.ClientEmail,
		"scope": SpreadsheetsReadOnlyScope,
		"aud":   cred.TokenURI,
		"exp":   now.Add(tokenLifetime).Unix(),
		"iat":   now.Unix(),
	}).SignedString(key)
	if err != nil {
		return model.AccessToken{}, adapter.NewError(adapter.KindConfiguration, opAccessToken, "sign assertion: "+err.Error(), err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	value, err := backoff.RetryNotifyWithData(func() (string, error) {
		v, err := p.exchange(ctx, cred.TokenURI, assertion)
		if err != nil && !err.Transient() {
			return "", backoff.Permanent(err)
		}
		if err != nil {
			return "", err
		}
		return v, nil
	}, b, func(err error, wait time.Duration) {
		p.logger.Warn("token exchange failed, retrying",
			zap.String("client_email", cred.ClientEmail),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		if adapter.KindOf(err) == "" {
			e := adapter.NewError(adapter.KindAuthExchange, opAccessToken, err.Error(), err)
			e.Temporary = true
			return model.AccessToken{}, e
		}
		return model.AccessToken{}, err
	}

	tok := model.AccessToken{Value: value, IssuedAt: now, ExpiresAt: now.Add(tokenLifetime)}
	if p.cache != nil {
		p.cache.put(fingerprint, tok)
	}
	return tok, nil
}

func (p *TokenProvider) exchange(ctx context.Context, tokenURI, assertion string) (string, *adapter.Error) {
	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", adapter.NewError(adapter.KindConfiguration, opAccessToken, "invalid token_uri: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		e := adapter.NewError(adapter.KindAuthExchange, opAccessToken, "token endpoint unreachable: "+err.Error(), err)
		e.Temporary = true
		return "", e
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodyBytes))
	if err != nil {
		e := adapter.NewError(adapter.KindAuthExchange, opAccessToken, "read token response: "+err.Error(), err)
		e.Temporary = true
		return "", e
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := adapter.NewError(adapter.KindAuthExchange, opAccessToken, "Failed to get access token: "+string(body), nil)
		e.StatusCode = resp.StatusCode
		return "", e
	}

	var tok oauth2.Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", adapter.NewError(adapter.KindAuthExchange, opAccessToken, "decode token response: "+err.Error(), err)
	}
	if tok.AccessToken == "" {
		return "", adapter.NewError(adapter.KindAuthExchange, opAccessToken, "token response has no access_token", nil)
	}
	return tok.AccessToken, nil
}

func credentialFingerprint(cred *model.ServiceAccountCredential) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s", cred.ClientEmail, cred.TokenURI, cred.PrivateKey)))
	return hex.EncodeToString(sum[:])
}

type tokenCache struct {
	mu      sync.Mutex
	entries map[string]model.AccessToken
}

func (c *tokenCache) get(fingerprint string, now time.Time) (model.AccessToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.entries[fingerprint]
	if !ok || !now.Before(tok.ExpiresAt.Add(-cacheExpirySkew)) {
		return model.AccessToken{}, false
	}
	return tok, true
}

func (c *tokenCache) put(fingerprint string, tok model.AccessToken) {
	c.mu.Lock()
	c.entries[fingerprint] = tok
	c.mu.Unlock()
}
