package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Provider is an OAuth2 identity provider
type Provider interface {
	// Name is the provider key used in routes and stored on OAuth accounts
	Name() string

	// AuthorizationURL builds the provider's consent URL. scopes overrides the
	// configured scopes when non-empty; codeChallenge enables S256 PKCE.
	AuthorizationURL(redirectURL, state string, scopes []string, codeChallenge string) string

	// Exchange trades an authorization code for provider tokens
	Exchange(ctx context.Context, code, redirectURL, codeVerifier string) (*oauth2.Token, error)

	// IDEmail returns the provider account ID and email for a token
	IDEmail(ctx context.Context, token *oauth2.Token) (accountID, email string, err error)
}

// ProviderConfig contains configuration for an OAuth provider
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	HTTPClient   *http.Client
}

// oauth2Provider implements the authorization and code exchange steps shared by
// every provider
type oauth2Provider struct {
	name       string
	config     *oauth2.Config
	httpClient *http.Client
}

func newOAuth2Provider(name string, cfg ProviderConfig, endpoint oauth2.Endpoint) oauth2Provider {
	return oauth2Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		httpClient: cfg.HTTPClient,
	}
}

func (p *oauth2Provider) Name() string {
	return p.name
}

// configFor returns a copy of the config with the per-request overrides applied
func (p *oauth2Provider) configFor(redirectURL string, scopes []string) *oauth2.Config {
	cfg := *p.config
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	if len(scopes) > 0 {
		cfg.Scopes = scopes
	}
	return &cfg
}

func (p *oauth2Provider) AuthorizationURL(
	redirectURL, state string,
	scopes []string,
	codeChallenge string,
) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return p.configFor(redirectURL, scopes).AuthCodeURL(state, opts...)
}

func (p *oauth2Provider) Exchange(
	ctx context.Context,
	code, redirectURL, codeVerifier string,
) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	tok, err := p.configFor(redirectURL, nil).Exchange(p.withClient(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	return tok, nil
}

// withClient makes the oauth2 package use the configured HTTP client
func (p *oauth2Provider) withClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// getJSON fetches url with the token's credentials and decodes the JSON response
func (p *oauth2Provider) getJSON(
	ctx context.Context,
	token *oauth2.Token,
	url string,
	out any,
) error {
	client := p.config.Client(p.withClient(ctx), token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOAuthProviderAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: %s - %s", ErrOAuthProviderAPI, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrOAuthProviderAPI, err)
	}
	return nil
}

// ExpiresAt returns the token expiry as unix seconds, or nil when the token never expires
func ExpiresAt(tok *oauth2.Token) *int64 {
	if tok == nil || tok.Expiry.IsZero() {
		return nil
	}
	v := tok.Expiry.Unix()
	return &v
}
