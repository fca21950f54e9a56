package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/cache"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/metrics"
	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/password"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testSecret   = "handlers-test-secret-at-least-32-chars"
	testPassword = "correct-horse-battery"
	testBaseURL  = "http://localhost:8080"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// captureNotifier keeps the last token sent for each user
type captureNotifier struct {
	mu     sync.Mutex
	verify map[string]string
	reset  map[string]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{verify: map[string]string{}, reset: map[string]string{}}
}

func (n *captureNotifier) SendVerificationToken(_ context.Context, user *models.User, tok string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify[user.Email] = tok
	return nil
}

func (n *captureNotifier) SendPasswordResetToken(_ context.Context, user *models.User, tok string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[user.Email] = tok
	return nil
}

func (n *captureNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[email]
}

func (n *captureNotifier) verifyToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verify[email]
}

// fakeProvider is an OAuth2 provider that accepts any code
type fakeProvider struct {
	accountID    string
	email        string
	gotRedirects []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthorizationURL(redirectURL, state string, scopes []string, codeChallenge string) string {
	q := url.Values{"state": {state}, "redirect_uri": {redirectURL}}
	for _, s := range scopes {
		q.Add("scope", s)
	}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
	}
	return "https://provider.test/authorize?" + q.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, redirectURL, _ string) (*oauth2.Token, error) {
	p.gotRedirects = append(p.gotRedirects, redirectURL)
	return &oauth2.Token{AccessToken: "access-" + code}, nil
}

func (p *fakeProvider) IDEmail(context.Context, *oauth2.Token) (string, string, error) {
	return p.accountID, p.email, nil
}

type testEnv struct {
	cfg      *config.Config
	db       *store.Store
	tokens   *token.Manager
	users    *services.UserService
	audit    *services.AuditService
	backend  core.AuthBackend
	notifier *captureNotifier
	provider *fakeProvider
	router   *gin.Engine
}

func newTestEnv(t *testing.T, backend string, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		BaseURL:                           testBaseURL,
		AuthBackend:                       backend,
		UserAuthIdentifier:                config.IdentifierEmail,
		HashSchemes:                       []string{config.HashSchemeBcrypt},
		PasswordMinLength:                 8,
		RequireVerificationOnRegistration: true,
		RolesEnabled:                      true,
		OAuthAutoRegister:                 true,
		OAuth2IsVerifiedByDefault:         true,
		UserCacheTTL:                      time.Minute,
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	db, err := store.New(ctx, "sqlite", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	auditService := services.NewAuditService(db, true, 100)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = auditService.Shutdown(ctx)
	})

	passwords, err := password.NewManager(cfg.HashSchemes, cfg.PasswordMinLength)
	require.NoError(t, err)
	tokens := token.NewManager(testSecret, "")
	notifier := newCaptureNotifier()
	provider := &fakeProvider{accountID: "acct-1", email: "oauth@example.com"}

	userService := services.NewUserService(
		db, cfg, passwords, tokens, notifier, nil,
		map[string]auth.Provider{"fake": provider},
		auditService,
		metrics.NewNoopMetrics(),
		cache.NewMemoryCache[models.User](),
	)

	var authBackend core.AuthBackend
	switch backend {
	case config.AuthBackendSession:
		authBackend = auth.NewSessionBackend(0)
	case config.AuthBackendJWTCookie:
		authBackend = auth.NewJWTCookieBackend(
			tokens, token.NewDenylist(cache.NewMemoryCache[bool]()), time.Hour, "token", false)
	default:
		authBackend = auth.NewJWTBackend(
			tokens, token.NewDenylist(cache.NewMemoryCache[bool]()), time.Hour)
	}

	env := &testEnv{
		cfg:      cfg,
		db:       db,
		tokens:   tokens,
		users:    userService,
		audit:    auditService,
		backend:  authBackend,
		notifier: notifier,
		provider: provider,
	}
	env.router = env.newRouter()
	return env
}

func (e *testEnv) newRouter() *gin.Engine {
	r := gin.New()
	if e.backend.Name() == config.AuthBackendSession {
		r.Use(sessions.Sessions("usergate_session", cookie.NewStore([]byte(testSecret))))
	}
	r.Use(middleware.Authenticate(e.backend, e.users, nil))

	authHandler := NewAuthHandler(e.users, e.backend, e.audit, metrics.NewNoopMetrics())
	userHandler := NewUserHandler(e.users)
	roleHandler := NewRoleHandler(e.users)
	oauthHandler := NewOAuthHandler(e.users, e.backend, e.audit, e.cfg.BaseURL, "/oauth2-associate")
	auditHandler := NewAuditHandler(e.audit)

	r.POST("/register", userHandler.Register)
	r.POST("/verify", userHandler.Verify)
	r.POST("/login", authHandler.Login)
	r.POST("/logout", middleware.RequireUser(), authHandler.Logout)
	r.POST("/forgot-password", userHandler.ForgotPassword)
	r.POST("/reset-password", userHandler.ResetPassword)

	me := r.Group("/users/me", middleware.RequireUser())
	me.GET("", userHandler.CurrentUser)
	me.PATCH("", userHandler.UpdateCurrentUser)

	roles := r.Group("/users/roles", middleware.RolesAccepted("admin"))
	roles.GET("", roleHandler.ListRoles)
	roles.POST("", roleHandler.CreateRole)
	roles.PATCH("/:role_id", roleHandler.UpdateRole)
	roles.DELETE("/:role_id", roleHandler.DeleteRole)
	roles.PUT("/assign", roleHandler.AssignRole)
	roles.PUT("/revoke", roleHandler.RevokeRole)

	users := r.Group("/users", middleware.RolesAccepted("admin"))
	users.GET("", userHandler.ListUsers)
	users.GET("/:user_id", userHandler.GetUser)
	users.PATCH("/:user_id", userHandler.UpdateUser)
	users.DELETE("/:user_id", userHandler.DeleteUser)

	r.GET("/oauth2/:provider/authorize", oauthHandler.Authorize)
	r.GET("/oauth2/:provider/callback", oauthHandler.Callback)
	associate := r.Group("/oauth2-associate", middleware.RequireUser())
	associate.GET("/:provider/authorize", oauthHandler.AssociateAuthorize)
	associate.GET("/:provider/callback", oauthHandler.AssociateCallback)
	associate.DELETE("/:provider", oauthHandler.Unlink)

	audit := r.Group("/audit", middleware.RolesAccepted("admin"))
	audit.GET("", auditHandler.ListAuditLogs)
	audit.GET("/stats", auditHandler.GetAuditLogStats)
	audit.GET("/export", auditHandler.ExportAuditLogs)
	return r
}

// createUser stores a user with testPassword and the given roles
func (e *testEnv) createUser(t *testing.T, email string, verified, active bool, roles ...string) *models.User {
	t.Helper()
	ctx := context.Background()

	passwords, err := password.NewManager(e.cfg.HashSchemes, e.cfg.PasswordMinLength)
	require.NoError(t, err)
	hash, err := passwords.Hash(testPassword)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
		IsVerified:   verified,
	}
	require.NoError(t, e.db.CreateUser(ctx, user))

	for _, name := range roles {
		role, err := e.db.GetRoleByName(ctx, name)
		if err != nil {
			role = &models.Role{ID: uuid.New().String(), Name: name}
			require.NoError(t, e.db.CreateRole(ctx, role))
		}
		require.NoError(t, e.db.AssignRole(ctx, user.ID, role.ID))
	}
	return user
}

// credentials authenticates follow-up requests
type credentials struct {
	cookies       []*http.Cookie
	authorization string
}

func (cr credentials) apply(req *http.Request) {
	for _, ck := range cr.cookies {
		req.AddCookie(ck)
	}
	if cr.authorization != "" {
		req.Header.Set("Authorization", cr.authorization)
	}
}

// loginAs logs in through the login route and returns the resulting credentials
func (e *testEnv) loginAs(t *testing.T, email string) credentials {
	t.Helper()
	w := e.do(t, http.MethodPost, "/login", gin.H{"email": email, "password": testPassword}, credentials{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return credentials{
		cookies:       w.Result().Cookies(),
		authorization: w.Header().Get("Authorization"),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, creds credentials) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	creds.apply(req)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) models.UserRead {
	t.Helper()
	var user models.UserRead
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user), w.Body.String())
	return user
}
