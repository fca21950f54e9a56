package auth

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// GiteaProvider signs users in with a self-hosted Gitea instance
type GiteaProvider struct {
	oauth2Provider
	baseURL string
}

// NewGiteaProvider creates a new Gitea OAuth provider
func NewGiteaProvider(cfg ProviderConfig, giteaURL string) *GiteaProvider {
	baseURL := strings.TrimRight(giteaURL, "/")
	return &GiteaProvider{
		oauth2Provider: newOAuth2Provider("gitea", cfg, oauth2.Endpoint{
			AuthURL:  baseURL + "/login/oauth/authorize",
			TokenURL: baseURL + "/login/oauth/access_token",
		}),
		baseURL: baseURL,
	}
}

type giteaUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

func (p *GiteaProvider) IDEmail(ctx context.Context, tok *oauth2.Token) (string, string, error) {
	var user giteaUser
	if err := p.getJSON(ctx, tok, p.baseURL+"/api/v1/user", &user); err != nil {
		return "", "", err
	}

	accountID := strconv.FormatInt(user.ID, 10)
	if user.Email == "" {
		return accountID, "", ErrOAuthNoEmail
	}
	return accountID, user.Email, nil
}
