package auth

import (
	"context"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIURL = "https://api.github.com"

// GitHubProvider signs users in with GitHub
type GitHubProvider struct {
	oauth2Provider
	apiURL string
}

// NewGitHubProvider creates a new GitHub OAuth provider
func NewGitHubProvider(cfg ProviderConfig) *GitHubProvider {
	return &GitHubProvider{
		oauth2Provider: newOAuth2Provider("github", cfg, github.Endpoint),
		apiURL:         githubAPIURL,
	}
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// IDEmail returns the GitHub user ID and public email, falling back to the
// primary verified address when the profile email is hidden
func (p *GitHubProvider) IDEmail(ctx context.Context, tok *oauth2.Token) (string, string, error) {
	var user githubUser
	if err := p.getJSON(ctx, tok, p.apiURL+"/user", &user); err != nil {
		return "", "", err
	}

	accountID := strconv.FormatInt(user.ID, 10)
	if user.Email != "" {
		return accountID, user.Email, nil
	}

	var emails []githubEmail
	if err := p.getJSON(ctx, tok, p.apiURL+"/user/emails", &emails); err != nil {
		return "", "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return accountID, email.Email, nil
		}
	}
	for _, email := range emails {
		if email.Verified {
			return accountID, email.Email, nil
		}
	}

	return accountID, "", ErrOAuthNoEmail
}
