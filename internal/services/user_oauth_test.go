package services

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProvider is an auth.Provider returning a fixed identity
type fakeProvider struct {
	name         string
	accountID    string
	email        string
	refreshToken string
	exchangeErr  error
	idErr        error

	gotCode     string
	gotVerifier string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthorizationURL(
	redirectURL, state string,
	scopes []string,
	codeChallenge string,
) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("redirect_uri", redirectURL)
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
	}
	return "https://provider.test/authorize?" + q.Encode()
}

func (p *fakeProvider) Exchange(
	_ context.Context,
	code, _ string,
	codeVerifier string,
) (*oauth2.Token, error) {
	p.gotCode = code
	p.gotVerifier = codeVerifier
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: p.refreshToken}, nil
}

func (p *fakeProvider) IDEmail(context.Context, *oauth2.Token) (string, string, error) {
	return p.accountID, p.email, p.idErr
}

func newOAuthService(
	t *testing.T,
	db *store.Store,
	p *fakeProvider,
	mutate func(*serviceOptions),
) *UserService {
	t.Helper()
	opts := serviceOptions{providers: map[string]auth.Provider{p.name: p}}
	if mutate != nil {
		mutate(&opts)
	}
	return newTestUserService(t, db, opts)
}

// authorizeState runs OAuth2Authorize and returns the signed state from the URL
func authorizeState(t *testing.T, svc *UserService, provider string, data map[string]string) string {
	t.Helper()
	authz, err := svc.OAuth2Authorize(context.Background(), OAuth2AuthorizeInput{
		Provider:      provider,
		RedirectURL:   "https://app.test/oauth2/" + provider + "/callback",
		CodeChallenge: "challenge",
		StateData:     data,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(authz.AuthorizationURL)
	require.NoError(t, err)
	assert.Equal(t, "challenge", parsed.Query().Get("code_challenge"))
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuth2_NotConfigured(t *testing.T) {
	db := setupTestStore(t)
	svc := newTestUserService(t, db, serviceOptions{})

	_, err := svc.OAuth2Authorize(context.Background(), OAuth2AuthorizeInput{Provider: "github"})
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)

	_, err = svc.GetByOAuthAccount(context.Background(), "github", "1")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestOAuth2Authorize_UnknownProvider(t *testing.T) {
	db := setupTestStore(t)
	svc := newOAuthService(t, db, &fakeProvider{name: "github"}, nil)

	_, err := svc.OAuth2Authorize(context.Background(), OAuth2AuthorizeInput{Provider: "gitlab"})
	assert.ErrorIs(t, err, ErrOAuthProviderNotFound)
	assert.Equal(t, []string{"github"}, svc.Providers())
}

func TestOAuth2Authorize_StateCarriesData(t *testing.T) {
	db := setupTestStore(t)
	svc := newOAuthService(t, db, &fakeProvider{name: "github"}, nil)

	state := authorizeState(t, svc, "github", map[string]string{"sub": "user-1", "next": "/home"})

	claims, err := svc.tokens.Decode(state, token.AudienceOAuth2State)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "/home", claims.Data["next"])
}

func TestOAuth2Callback_RegistersNewUser(t *testing.T) {
	db := setupTestStore(t)
	p := &fakeProvider{name: "github", accountID: "42", email: "octo@example.com", refreshToken: "r1"}
	hooks := &recordingHooks{}
	svc := newOAuthService(t, db, p, func(o *serviceOptions) {
		o.cfg = testConfig()
		o.cfg.OAuth2IsVerifiedByDefault = true
		o.hooks = hooks
	})
	ctx := context.Background()
	state := authorizeState(t, svc, "github", nil)

	user, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:     "github",
		Code:         "abc%2Fdef",
		CodeVerifier: "verifier",
		State:        state,
	})
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerified)
	require.Len(t, user.OAuthAccounts, 1)
	assert.Equal(t, "access-abc/def", user.OAuthAccounts[0].AccessToken)
	assert.Equal(t, "abc/def", p.gotCode)
	assert.Equal(t, "verifier", p.gotVerifier)
	assert.Equal(t, []string{user.ID}, hooks.registered)

	linked, err := svc.GetByOAuthAccount(ctx, "github", "42")
	require.NoError(t, err)
	assert.Equal(t, user.ID, linked.ID)
}

func TestOAuth2Callback_ExistingAccountRefreshesTokens(t *testing.T) {
	db := setupTestStore(t)
	p := &fakeProvider{name: "github", accountID: "42", email: "octo@example.com", refreshToken: "r1"}
	svc := newOAuthService(t, db, p, nil)
	ctx := context.Background()

	first, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider: "github",
		Code:     "one",
		State:    authorizeState(t, svc, "github", nil),
	})
	require.NoError(t, err)

	// Provider omits the refresh token on the second login
	p.refreshToken = ""
	second, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider: "github",
		Code:     "two",
		State:    authorizeState(t, svc, "github", nil),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.OAuthAccounts, 1)
	assert.Equal(t, "access-two", second.OAuthAccounts[0].AccessToken)
	assert.Equal(t, "r1", second.OAuthAccounts[0].RefreshToken)
}

func TestOAuth2Callback_ExistingEmail(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()
	u := makeTestUser(t, db)
	p := &fakeProvider{name: "gitea", accountID: "7", email: u.Email}

	t.Run("rejected without associate by email", func(t *testing.T) {
		svc := newOAuthService(t, db, p, nil)
		_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
			Provider: "gitea",
			Code:     "code",
			State:    authorizeState(t, svc, "gitea", nil),
		})
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("linked with associate by email", func(t *testing.T) {
		svc := newOAuthService(t, db, p, func(o *serviceOptions) {
			o.cfg = testConfig()
			o.cfg.OAuth2AssociateByEmail = true
		})
		user, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
			Provider: "gitea",
			Code:     "code",
			State:    authorizeState(t, svc, "gitea", nil),
		})
		require.NoError(t, err)
		assert.Equal(t, u.ID, user.ID)
		require.Len(t, user.OAuthAccounts, 1)
		assert.Equal(t, "gitea", user.OAuthAccounts[0].OAuthName)
	})
}

func TestOAuth2Callback_AutoRegisterDisabled(t *testing.T) {
	db := setupTestStore(t)
	p := &fakeProvider{name: "github", accountID: "99", email: "new@example.com"}
	svc := newOAuthService(t, db, p, func(o *serviceOptions) {
		o.cfg = testConfig()
		o.cfg.OAuthAutoRegister = false
	})

	_, err := svc.OAuth2Callback(context.Background(), OAuth2CallbackInput{
		Provider: "github",
		Code:     "code",
		State:    authorizeState(t, svc, "github", nil),
	})
	assert.ErrorIs(t, err, ErrOAuthAutoRegisterDisabled)
}

func TestOAuth2Callback_Failures(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	t.Run("provider error", func(t *testing.T) {
		svc := newOAuthService(t, db, &fakeProvider{name: "github"}, nil)
		_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{Provider: "github", Error: "access_denied"})
		assert.ErrorIs(t, err, ErrOAuthCallbackFailed)
	})

	t.Run("invalid state", func(t *testing.T) {
		p := &fakeProvider{name: "github"}
		svc := newOAuthService(t, db, p, nil)
		_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
			Provider: "github",
			Code:     "code",
			State:    "forged",
		})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Empty(t, p.gotCode, "code must not be exchanged with an invalid state")
	})

	t.Run("exchange failure", func(t *testing.T) {
		p := &fakeProvider{name: "github", exchangeErr: auth.ErrOAuthExchange}
		svc := newOAuthService(t, db, p, nil)
		_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
			Provider: "github",
			Code:     "code",
			State:    authorizeState(t, svc, "github", nil),
		})
		assert.ErrorIs(t, err, ErrOAuthCallbackFailed)
		assert.ErrorIs(t, err, auth.ErrOAuthExchange)
	})

	t.Run("no email", func(t *testing.T) {
		p := &fakeProvider{name: "github", accountID: "1", idErr: auth.ErrOAuthNoEmail}
		svc := newOAuthService(t, db, p, nil)
		_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
			Provider: "github",
			Code:     "code",
			State:    authorizeState(t, svc, "github", nil),
		})
		assert.ErrorIs(t, err, ErrOAuthNoEmail)
	})

	t.Run("identity failure", func(t *testing.T) {
		p := &fakeProvider{name: "github", idErr: errors.New("boom")}
		svc := newOAuthService(t, db, p, nil)
		_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
			Provider: "github",
			Code:     "code",
			State:    authorizeState(t, svc, "github", nil),
		})
		assert.ErrorIs(t, err, ErrOAuthCallbackFailed)
	})
}

func TestOAuth2Callback_Associate(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()
	owner := makeTestUser(t, db)
	other := makeTestUser(t, db)
	p := &fakeProvider{name: "github", accountID: "555", email: "different@example.com"}
	svc := newOAuthService(t, db, p, nil)

	// State issued for another user
	_, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:      "github",
		Code:          "code",
		State:         authorizeState(t, svc, "github", map[string]string{"sub": other.ID}),
		AssociateUser: owner,
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	linked, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:      "github",
		Code:          "code",
		State:         authorizeState(t, svc, "github", map[string]string{"sub": owner.ID}),
		AssociateUser: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, linked.ID)
	require.Len(t, linked.OAuthAccounts, 1)
	assert.Equal(t, "555", linked.OAuthAccounts[0].AccountID)

	// Associating again refreshes the same link
	again, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:      "github",
		Code:          "again",
		State:         authorizeState(t, svc, "github", map[string]string{"sub": owner.ID}),
		AssociateUser: owner,
	})
	require.NoError(t, err)
	require.Len(t, again.OAuthAccounts, 1)
	assert.Equal(t, "access-again", again.OAuthAccounts[0].AccessToken)

	// The account cannot be associated with a second user
	_, err = svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:      "github",
		Code:          "code",
		State:         authorizeState(t, svc, "github", map[string]string{"sub": other.ID}),
		AssociateUser: other,
	})
	assert.ErrorIs(t, err, ErrOAuthAccountLinked)
}

func TestOAuth2Callback_SignInStateWithoutData(t *testing.T) {
	db := setupTestStore(t)
	p := &fakeProvider{name: "github", accountID: "7", email: "nonce@example.com"}
	svc := newOAuthService(t, db, p, nil)
	ctx := context.Background()

	state := authorizeState(t, svc, "github", nil)
	claims, err := svc.tokens.Decode(state, token.AudienceOAuth2State)
	require.NoError(t, err)
	assert.Regexp(t, `^state:`, claims.Subject)

	user, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider: "github",
		Code:     "code",
		State:    state,
	})
	require.NoError(t, err)
	assert.Equal(t, "nonce@example.com", user.Email)

	// A sign-in state names no user, so it cannot drive an association
	owner := makeTestUser(t, db)
	_, err = svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:      "github",
		Code:          "code",
		State:         authorizeState(t, svc, "github", nil),
		AssociateUser: owner,
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUnlinkOAuthAccount(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()
	owner := makeTestUser(t, db)
	p := &fakeProvider{name: "github", accountID: "900", email: owner.Email}
	svc := newOAuthService(t, db, p, nil)

	linked, err := svc.OAuth2Callback(ctx, OAuth2CallbackInput{
		Provider:      "github",
		Code:          "code",
		State:         authorizeState(t, svc, "github", map[string]string{"sub": owner.ID}),
		AssociateUser: owner,
	})
	require.NoError(t, err)
	require.Len(t, linked.OAuthAccounts, 1)

	_, err = svc.UnlinkOAuthAccount(ctx, owner, "gitea")
	assert.ErrorIs(t, err, ErrOAuthAccountNotFound)

	user, err := svc.UnlinkOAuthAccount(ctx, owner, "github")
	require.NoError(t, err)
	assert.Empty(t, user.OAuthAccounts)

	_, err = svc.GetByOAuthAccount(ctx, "github", "900")
	assert.ErrorIs(t, err, ErrOAuthAccountNotFound)

	_, err = svc.UnlinkOAuthAccount(ctx, owner, "github")
	assert.ErrorIs(t, err, ErrOAuthAccountNotFound)

	unconfigured := newTestUserService(t, db, serviceOptions{})
	_, err = unconfigured.UnlinkOAuthAccount(ctx, owner, "github")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestRefreshAccount(t *testing.T) {
	expiry := int64(1700000000)
	existing := &models.OAuthAccount{AccessToken: "old", RefreshToken: "keep"}
	refreshAccount(existing, &models.OAuthAccount{
		AccessToken:  "new",
		AccountEmail: "e@example.com",
		ExpiresAt:    &expiry,
	})

	assert.Equal(t, "new", existing.AccessToken)
	assert.Equal(t, "keep", existing.RefreshToken)
	assert.Equal(t, "e@example.com", existing.AccountEmail)
	assert.Equal(t, &expiry, existing.ExpiresAt)
}
