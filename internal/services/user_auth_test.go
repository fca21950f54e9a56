package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/mocks"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/password"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeUserWithPassword stores a verified, active user whose password is hashed
// with the given schemes
func makeUserWithPassword(
	t *testing.T,
	db *store.Store,
	email, pw string,
	schemes ...string,
) *models.User {
	t.Helper()
	if len(schemes) == 0 {
		schemes = []string{config.HashSchemeBcrypt}
	}
	hasher, err := password.NewManager(schemes, 0)
	require.NoError(t, err)
	hash, err := hasher.Hash(pw)
	require.NoError(t, err)

	u := makeTestUser(t, db)
	require.NoError(t, db.UpdateUserFields(context.Background(), u.ID, map[string]any{
		"email":         email,
		"password_hash": hash,
		"is_verified":   true,
	}))
	u.Email = email
	u.PasswordHash = hash
	u.IsVerified = true
	return u
}

func TestAuthenticate_Success(t *testing.T) {
	db := setupTestStore(t)
	hooks := &recordingHooks{preLoginResult: true}
	svc := newTestUserService(t, db, serviceOptions{hooks: hooks})
	u := makeUserWithPassword(t, db, "login@example.com", "correct-horse")

	result, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "LOGIN@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, u.ID, result.ID)
	assert.Equal(t, []string{u.ID}, hooks.loggedIn)
}

func TestAuthenticate_ByUsername(t *testing.T) {
	db := setupTestStore(t)
	cfg := testConfig()
	cfg.UserAuthIdentifier = config.IdentifierUsername
	svc := newTestUserService(t, db, serviceOptions{cfg: cfg})
	u := makeUserWithPassword(t, db, "byname@example.com", "correct-horse")

	// The email is ignored when logging in by username
	result, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "someone-else@example.com",
		Username: strings.ToUpper(*u.Username),
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, u.ID, result.ID)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)
	recorder.EXPECT().
		RecordLogin(config.AuthBackendSession, false, gomock.Any()).
		Times(1)

	svc := newTestUserService(t, db, serviceOptions{recorder: recorder})
	makeUserWithPassword(t, db, "wrong@example.com", "correct-horse")

	_, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "wrong@example.com",
		Password: "incorrect-horse",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	db := setupTestStore(t)
	svc := newTestUserService(t, db, serviceOptions{})

	_, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "ghost@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_PreLoginVeto(t *testing.T) {
	db := setupTestStore(t)
	hooks := &recordingHooks{preLoginResult: false}
	svc := newTestUserService(t, db, serviceOptions{hooks: hooks})
	makeUserWithPassword(t, db, "veto@example.com", "correct-horse")

	_, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "veto@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, hooks.loggedIn)
}

func TestAuthenticate_PreLoginError(t *testing.T) {
	db := setupTestStore(t)
	hookErr := errors.New("login window closed")
	svc := newTestUserService(t, db, serviceOptions{
		hooks: &recordingHooks{preLoginErr: hookErr},
	})

	_, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "any@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, hookErr)
}

func TestAuthenticate_UpgradesDeprecatedHash(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)

	cfg := testConfig()
	cfg.HashSchemes = []string{config.HashSchemeArgon2id, config.HashSchemeBcrypt}
	svc := newTestUserService(t, db, serviceOptions{cfg: cfg, cache: mockCache})

	u := makeUserWithPassword(t, db, "legacy@example.com", "correct-horse", config.HashSchemeBcrypt)
	require.True(t, strings.HasPrefix(u.PasswordHash, "$2"))

	mockCache.EXPECT().Delete(gomock.Any(), "user:"+u.ID).Return(nil).Times(1)

	_, err := svc.Authenticate(context.Background(), Credentials{
		Email:    "legacy@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	stored, err := db.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
}

func TestGenerateToken_Audiences(t *testing.T) {
	db := setupTestStore(t)
	svc := newTestUserService(t, db, serviceOptions{})
	u := makeTestUser(t, db)

	tok, err := svc.GenerateToken(u.ID, token.AudienceResetPassword)
	require.NoError(t, err)

	// A reset token never verifies an account
	_, err = svc.Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenLifetime(t *testing.T) {
	svc := &UserService{config: &config.Config{PasswordResetTTL: 30 * time.Minute}}

	assert.Equal(t, 30*time.Minute, svc.tokenLifetime(token.AudienceResetPassword))
	assert.Equal(t, token.DefaultVerifyLifetime, svc.tokenLifetime(token.AudienceVerify))
	assert.Equal(t, token.DefaultStateLifetime, svc.tokenLifetime(token.AudienceOAuth2State))
}

func TestVerify_InvalidTokens(t *testing.T) {
	db := setupTestStore(t)
	hooks := &recordingHooks{preLoginResult: true}
	svc := newTestUserService(t, db, serviceOptions{hooks: hooks})
	ctx := context.Background()

	_, err := svc.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Well-formed token for a user that does not exist
	tok, err := svc.GenerateToken("00000000-0000-0000-0000-000000000000", token.AudienceVerify)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.Empty(t, hooks.verified)
}

func TestVerify_RunsHook(t *testing.T) {
	db := setupTestStore(t)
	hooks := &recordingHooks{preLoginResult: true}
	svc := newTestUserService(t, db, serviceOptions{hooks: hooks})
	u := makeTestUser(t, db)

	tok, err := svc.GenerateToken(u.ID, token.AudienceVerify)
	require.NoError(t, err)

	verified, err := svc.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Equal(t, []string{u.ID}, hooks.verified)
}

func TestPasswordReset_Flow(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockNotifier := mocks.NewMockNotifier(ctrl)
	ctx := context.Background()

	u := makeUserWithPassword(t, db, "reset@example.com", "old-password")

	var resetToken string
	mockNotifier.EXPECT().
		SendPasswordResetToken(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, user *models.User, tok string) error {
			assert.Equal(t, u.ID, user.ID)
			resetToken = tok
			return nil
		}).Times(1)

	svc := newTestUserService(t, db, serviceOptions{notifier: mockNotifier})

	require.NoError(t, svc.InitiatePasswordReset(ctx, "reset@example.com"))
	require.NotEmpty(t, resetToken)

	require.NoError(t, svc.ResetPassword(ctx, resetToken, "brand-new-password"))

	_, err := svc.Authenticate(ctx, Credentials{Email: "reset@example.com", Password: "old-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := svc.Authenticate(ctx, Credentials{Email: "reset@example.com", Password: "brand-new-password"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, result.ID)
}

func TestInitiatePasswordReset_UnknownEmail(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockNotifier := mocks.NewMockNotifier(ctrl)
	// No expectations: nothing is sent for an unknown email

	svc := newTestUserService(t, db, serviceOptions{notifier: mockNotifier})

	err := svc.InitiatePasswordReset(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
}

func TestResetPassword_Errors(t *testing.T) {
	db := setupTestStore(t)
	svc := newTestUserService(t, db, serviceOptions{})
	ctx := context.Background()
	u := makeTestUser(t, db)

	err := svc.ResetPassword(ctx, "garbage", "brand-new-password")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A verification token is not a reset token
	verifyToken, err := svc.GenerateToken(u.ID, token.AudienceVerify)
	require.NoError(t, err)
	err = svc.ResetPassword(ctx, verifyToken, "brand-new-password")
	assert.ErrorIs(t, err, ErrInvalidToken)

	resetToken, err := svc.GenerateToken(u.ID, token.AudienceResetPassword)
	require.NoError(t, err)
	err = svc.ResetPassword(ctx, resetToken, "short")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}
