package auth

import (
	"context"

	"github.com/sinergia/backend/internal/model"
)

// ServiceAccountTokenSource loads the credential and exchanges it on every
// call. Caching, when enabled, lives in the TokenProvider.
type ServiceAccountTokenSource struct {
	credentials CredentialSource
	provider    *TokenProvider
}

// NewServiceAccountTokenSource binds a credential source to a provider.
func NewServiceAccountTokenSource(credentials CredentialSource, provider *TokenProvider) *ServiceAccountTokenSource {
	return &ServiceAccountTokenSource{credentials: credentials, provider: provider}
}

// AccessToken returns a bearer token for the Sheets API.
func (s *ServiceAccountTokenSource) AccessToken(ctx context.Context) (model.AccessToken, error) {
	cred, err := s.credentials.Credential(ctx)
	if err != nil {
		return model.AccessToken{}, err
	}
	return s.provider.GetAccessToken(ctx, cred)
}
