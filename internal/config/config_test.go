package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes Validate
func validConfig() *Config {
	guard := GuardConfig{Roles: []string{"administrator"}, Mode: GuardAccepted}
	return &Config{
		Secret:             strings.Repeat("s", 32),
		AuthBackend:        AuthBackendSession,
		SessionSecret:      "session-secret",
		UserAuthIdentifier: IdentifierEmail,
		HashSchemes:        []string{HashSchemeArgon2id, HashSchemeBcrypt},
		DatabaseDriver:     "sqlite",
		RateLimitStore:     CacheTypeMemory,
		UserCacheType:      CacheTypeMemory,
		MetricsCacheType:   CacheTypeMemory,
		TokenDenylistType:  CacheTypeMemory,
		Notifier:           NotifierLog,
		RegisterRoute:      RouteConfig{Enabled: true, Path: "/register"},
		LoginRoute:         RouteConfig{Enabled: true, Path: "/login"},

		UserManagementGuard: guard,
		RoleManagementGuard: guard,
		AuditGuard:          guard,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
		errMsg  string
	}{
		{
			name:   "valid session config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid jwt config without session secret",
			mutate: func(c *Config) {
				c.AuthBackend = AuthBackendJWT
				c.SessionSecret = ""
			},
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Secret = "too-short" },
			wantErr: ErrSecretTooShort,
		},
		{
			name:    "session backend without session secret",
			mutate:  func(c *Config) { c.SessionSecret = "" },
			wantErr: ErrMissingSetting,
			errMsg:  "SESSION_SECRET",
		},
		{
			name:    "unknown auth backend",
			mutate:  func(c *Config) { c.AuthBackend = "oauth" },
			wantErr: ErrInvalidSetting,
			errMsg:  `AUTH_BACKEND="oauth"`,
		},
		{
			name:    "unknown identifier",
			mutate:  func(c *Config) { c.UserAuthIdentifier = "phone" },
			wantErr: ErrInvalidSetting,
		},
		{
			name:    "unknown hash scheme",
			mutate:  func(c *Config) { c.HashSchemes = []string{"md5"} },
			wantErr: ErrInvalidSetting,
			errMsg:  "md5",
		},
		{
			name:    "empty hash schemes",
			mutate:  func(c *Config) { c.HashSchemes = nil },
			wantErr: ErrMissingSetting,
		},
		{
			name:    "unknown database driver",
			mutate:  func(c *Config) { c.DatabaseDriver = "mysql" },
			wantErr: ErrInvalidSetting,
		},
		{
			name:    "rate limit store typo",
			mutate:  func(c *Config) { c.RateLimitStore = "reddis" },
			wantErr: ErrInvalidSetting,
			errMsg:  `RATE_LIMIT_STORE="reddis"`,
		},
		{
			name:    "redis-aside is not a rate limit store",
			mutate:  func(c *Config) { c.RateLimitStore = CacheTypeRedisAside },
			wantErr: ErrInvalidSetting,
		},
		{
			name:   "redis-aside user cache",
			mutate: func(c *Config) { c.UserCacheType = CacheTypeRedisAside },
		},
		{
			name:    "invalid user cache",
			mutate:  func(c *Config) { c.UserCacheType = "memcache" },
			wantErr: ErrInvalidSetting,
		},
		{
			name:    "invalid denylist",
			mutate:  func(c *Config) { c.TokenDenylistType = CacheTypeRedisAside },
			wantErr: ErrInvalidSetting,
		},
		{
			name:    "webhook notifier without url",
			mutate:  func(c *Config) { c.Notifier = NotifierWebhook },
			wantErr: ErrMissingSetting,
			errMsg:  "NOTIFIER_WEBHOOK_URL",
		},
		{
			name: "webhook notifier hmac without secret",
			mutate: func(c *Config) {
				c.Notifier = NotifierWebhook
				c.NotifierWebhookURL = "https://hooks.example.com/usergate"
				c.NotifierWebhookAuth = "hmac"
			},
			wantErr: ErrMissingSetting,
			errMsg:  "NOTIFIER_WEBHOOK_SECRET",
		},
		{
			name: "webhook notifier without auth",
			mutate: func(c *Config) {
				c.Notifier = NotifierWebhook
				c.NotifierWebhookURL = "https://hooks.example.com/usergate"
				c.NotifierWebhookAuth = "none"
			},
		},
		{
			name:    "invalid guard mode",
			mutate:  func(c *Config) { c.AuditGuard.Mode = "some" },
			wantErr: ErrInvalidSetting,
		},
		{
			name:    "enabled route without leading slash",
			mutate:  func(c *Config) { c.LoginRoute.Path = "login" },
			wantErr: ErrInvalidRoutePath,
		},
		{
			name: "disabled route path is not checked",
			mutate: func(c *Config) {
				c.LoginRoute = RouteConfig{Enabled: false, Path: "login"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SECRET", strings.Repeat("x", 40))
	t.Setenv("SESSION_SECRET", "secret")

	cfg := Load()

	assert.Equal(t, AuthBackendSession, cfg.AuthBackend)
	assert.Equal(t, IdentifierEmail, cfg.UserAuthIdentifier)
	assert.Equal(t, []string{HashSchemeArgon2id, HashSchemeBcrypt}, cfg.HashSchemes)
	assert.True(t, cfg.RequireVerificationOnRegistration)
	assert.Equal(t, "/register", cfg.RegisterRoute.Path)
	assert.Equal(t, "/users/roles", cfg.RoleManagementRoute.Path)
	assert.Equal(t, []string{"administrator"}, cfg.UserManagementGuard.Roles)
	assert.Equal(t, GuardAccepted, cfg.UserManagementGuard.Mode)
	assert.False(t, cfg.OAuthEnabled())
	assert.False(t, cfg.UsesJWT())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_BACKEND", AuthBackendJWTCookie)
	t.Setenv("HASH_SCHEMES", " bcrypt , argon2id ")
	t.Setenv("LOGIN_ROUTE_PATH", "/auth/login")
	t.Setenv("REGISTER_ROUTE_ENABLED", "false")
	t.Setenv("ROLE_MANAGEMENT_GUARD_ROLES", "admin,staff")
	t.Setenv("ROLE_MANAGEMENT_GUARD_MODE", GuardRequired)
	t.Setenv("GITEA_OAUTH_ENABLED", "true")
	t.Setenv("JWT_EXPIRATION", "90m")
	t.Setenv("PASSWORD_MIN_LENGTH", "12")

	cfg := Load()

	assert.True(t, cfg.UsesJWT())
	assert.Equal(t, []string{HashSchemeBcrypt, HashSchemeArgon2id}, cfg.HashSchemes)
	assert.Equal(t, "/auth/login", cfg.LoginRoute.Path)
	assert.False(t, cfg.RegisterRoute.Enabled)
	assert.Equal(t, []string{"admin", "staff"}, cfg.RoleManagementGuard.Roles)
	assert.Equal(t, GuardRequired, cfg.RoleManagementGuard.Mode)
	assert.True(t, cfg.OAuthEnabled())
	assert.Equal(t, "1h30m0s", cfg.JWTExpiration.String())
	assert.Equal(t, 12, cfg.PasswordMinLength)
}
