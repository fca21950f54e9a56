package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth backend constants
const (
	AuthBackendSession   = "session"
	AuthBackendJWT       = "jwt"
	AuthBackendJWTCookie = "jwt_cookie"
)

// User identifier constants
const (
	IdentifierEmail    = "email"
	IdentifierUsername = "username"
)

// Password hash scheme constants
const (
	HashSchemeArgon2id = "argon2id"
	HashSchemeBcrypt   = "bcrypt"
)

// Cache type constants
const (
	CacheTypeMemory     = "memory"
	CacheTypeRedis      = "redis"
	CacheTypeRedisAside = "redis-aside"
)

// Notifier type constants
const (
	NotifierLog     = "log"
	NotifierWebhook = "webhook"
)

// Guard mode constants
const (
	GuardAccepted = "accepted" // user holds any of the roles
	GuardRequired = "required" // user holds all of the roles
)

// Config errors
var (
	ErrSecretTooShort   = errors.New("SECRET must be at least 32 characters")
	ErrInvalidSetting   = errors.New("invalid configuration")
	ErrMissingSetting   = errors.New("missing configuration")
	ErrInvalidRoutePath = errors.New("route path must start with '/'")
)

// RouteConfig configures one group of route handlers.
type RouteConfig struct {
	Enabled bool
	Path    string
}

// GuardConfig restricts a group of route handlers to users holding roles.
type GuardConfig struct {
	Roles []string
	Mode  string // "accepted" or "required"
}

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	Environment  string
	IsProduction bool

	// Signing secret for verification, reset, state and access tokens
	Secret string

	// Authentication
	AuthBackend                       string // "session", "jwt" or "jwt_cookie"
	UserAuthIdentifier                string // "email" or "username"
	RequireVerificationOnRegistration bool
	HashSchemes                       []string // first entry hashes, all entries verify
	PasswordMinLength                 int
	AuthExcludePaths                  []string // regexes bypassing authentication

	// JWT settings
	JWTExpiration     time.Duration
	JWTCookieName     string
	VerificationTTL   time.Duration
	PasswordResetTTL  time.Duration
	OAuth2StateTTL    time.Duration
	TokenDenylistType string // "memory" or "redis"

	// Session settings
	SessionSecret      string
	SessionName        string
	SessionMaxAge      int           // seconds
	SessionIdleTimeout time.Duration // 0 disables

	// Route handlers
	RegisterRoute        RouteConfig
	VerifyRoute          RouteConfig
	LoginRoute           RouteConfig
	LogoutRoute          RouteConfig
	CurrentUserRoute     RouteConfig
	ForgotPasswordRoute  RouteConfig
	ResetPasswordRoute   RouteConfig
	UserManagementRoute  RouteConfig
	RoleManagementRoute  RouteConfig
	OAuth2Route          RouteConfig
	OAuth2AssociateRoute RouteConfig
	AuditRoute           RouteConfig

	UserManagementGuard GuardConfig
	RoleManagementGuard GuardConfig
	AuditGuard          GuardConfig

	// Roles
	RolesEnabled     bool
	DefaultAdminRole string

	// Default admin user
	DefaultAdminEmail    string
	DefaultAdminPassword string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	DBInitTimeout  time.Duration

	// OAuth settings
	OAuth2AssociateByEmail    bool
	OAuth2IsVerifiedByDefault bool
	OAuthAutoRegister         bool
	OAuthTimeout              time.Duration
	OAuthInsecureSkipVerify   bool

	// GitHub OAuth
	GitHubOAuthEnabled     bool
	GitHubClientID         string
	GitHubClientSecret     string
	GitHubOAuthRedirectURL string
	GitHubOAuthScopes      []string

	// Gitea OAuth
	GiteaOAuthEnabled     bool
	GiteaURL              string
	GiteaClientID         string
	GiteaClientSecret     string
	GiteaOAuthRedirectURL string
	GiteaOAuthScopes      []string

	// Generic OpenID Connect provider
	OIDCOAuthEnabled     bool
	OIDCProviderName     string
	OIDCIssuerURL        string
	OIDCClientID         string
	OIDCClientSecret     string
	OIDCOAuthRedirectURL string
	OIDCOAuthScopes      []string

	// Notifications
	Notifier              string // "log" or "webhook"
	NotifierWebhookURL    string
	NotifierWebhookSecret string
	NotifierWebhookHeader string
	NotifierWebhookAuth   string // "none", "simple" or "hmac"
	NotifierTimeout       time.Duration
	NotifierMaxRetries    int
	NotifierRetryDelay    time.Duration
	NotifierMaxRetryDelay time.Duration

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RateLimitCleanupInterval time.Duration
	LoginRateLimit           int // requests per minute
	RegisterRateLimit        int
	ForgotPasswordRateLimit  int
	ResetPasswordRateLimit   int
	VerifyRateLimit          int

	// Caches
	CacheInitTimeout        time.Duration
	UserCacheType           string
	UserCacheTTL            time.Duration
	UserCacheClientTTL      time.Duration
	UserCacheSizePerConn    int // MB
	MetricsCacheType        string
	MetricsCacheClientTTL   time.Duration
	MetricsCacheSizePerConn int // MB

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration

	// Audit
	EnableAuditLogging bool
	AuditLogBufferSize int
	AuditLogRetention  time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "usergate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	environment := getEnv("ENVIRONMENT", "development")
	identifier := getEnv("USER_AUTH_IDENTIFIER", IdentifierEmail)

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		Environment:  environment,
		IsProduction: environment == "production",

		Secret: getEnv("SECRET", ""),

		AuthBackend:                       getEnv("AUTH_BACKEND", AuthBackendSession),
		UserAuthIdentifier:                identifier,
		RequireVerificationOnRegistration: getEnvBool("REQUIRE_VERIFICATION_ON_REGISTRATION", true),
		HashSchemes: getEnvSlice(
			"HASH_SCHEMES",
			[]string{HashSchemeArgon2id, HashSchemeBcrypt},
		),
		PasswordMinLength: getEnvInt("PASSWORD_MIN_LENGTH", 8),
		AuthExcludePaths:  getEnvSlice("AUTH_EXCLUDE_PATHS", nil),

		JWTExpiration:     getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		JWTCookieName:     getEnv("JWT_COOKIE_NAME", "token"),
		VerificationTTL:   getEnvDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		PasswordResetTTL:  getEnvDuration("PASSWORD_RESET_TOKEN_TTL", 24*time.Hour),
		OAuth2StateTTL:    getEnvDuration("OAUTH2_STATE_TTL", time.Hour),
		TokenDenylistType: getEnv("TOKEN_DENYLIST_TYPE", CacheTypeMemory),

		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionName:        getEnv("SESSION_NAME", "usergate_session"),
		SessionMaxAge:      getEnvInt("SESSION_MAX_AGE", 86400),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 0),

		RegisterRoute:        routeFromEnv("REGISTER", "/register"),
		VerifyRoute:          routeFromEnv("VERIFY", "/verify"),
		LoginRoute:           routeFromEnv("LOGIN", "/login"),
		LogoutRoute:          routeFromEnv("LOGOUT", "/logout"),
		CurrentUserRoute:     routeFromEnv("CURRENT_USER", "/users/me"),
		ForgotPasswordRoute:  routeFromEnv("FORGOT_PASSWORD", "/forgot-password"),
		ResetPasswordRoute:   routeFromEnv("RESET_PASSWORD", "/reset-password"),
		UserManagementRoute:  routeFromEnv("USER_MANAGEMENT", "/users"),
		RoleManagementRoute:  routeFromEnv("ROLE_MANAGEMENT", "/users/roles"),
		OAuth2Route:          routeFromEnv("OAUTH2", "/oauth2"),
		OAuth2AssociateRoute: routeFromEnv("OAUTH2_ASSOCIATE", "/oauth2-associate"),
		AuditRoute:           routeFromEnv("AUDIT", "/audit"),

		UserManagementGuard: guardFromEnv("USER_MANAGEMENT"),
		RoleManagementGuard: guardFromEnv("ROLE_MANAGEMENT"),
		AuditGuard:          guardFromEnv("AUDIT"),

		RolesEnabled:     getEnvBool("ROLES_ENABLED", true),
		DefaultAdminRole: getEnv("DEFAULT_ADMIN_ROLE", "administrator"),

		DefaultAdminEmail:    getEnv("DEFAULT_ADMIN_EMAIL", "admin@localhost"),
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		OAuth2AssociateByEmail:    getEnvBool("OAUTH2_ASSOCIATE_BY_EMAIL", false),
		OAuth2IsVerifiedByDefault: getEnvBool("OAUTH2_IS_VERIFIED_BY_DEFAULT", false),
		OAuthAutoRegister:         getEnvBool("OAUTH_AUTO_REGISTER", true),
		OAuthTimeout:              getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify:   getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),

		GitHubOAuthEnabled:     getEnvBool("GITHUB_OAUTH_ENABLED", false),
		GitHubClientID:         getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:     getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubOAuthRedirectURL: getEnv("GITHUB_REDIRECT_URL", ""),
		GitHubOAuthScopes:      getEnvSlice("GITHUB_SCOPES", []string{"user:email"}),

		GiteaOAuthEnabled:     getEnvBool("GITEA_OAUTH_ENABLED", false),
		GiteaURL:              getEnv("GITEA_URL", ""),
		GiteaClientID:         getEnv("GITEA_CLIENT_ID", ""),
		GiteaClientSecret:     getEnv("GITEA_CLIENT_SECRET", ""),
		GiteaOAuthRedirectURL: getEnv("GITEA_REDIRECT_URL", ""),
		GiteaOAuthScopes:      getEnvSlice("GITEA_SCOPES", []string{"read:user"}),

		OIDCOAuthEnabled:     getEnvBool("OIDC_OAUTH_ENABLED", false),
		OIDCProviderName:     getEnv("OIDC_PROVIDER_NAME", "oidc"),
		OIDCIssuerURL:        getEnv("OIDC_ISSUER_URL", ""),
		OIDCClientID:         getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:     getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCOAuthRedirectURL: getEnv("OIDC_REDIRECT_URL", ""),
		OIDCOAuthScopes: getEnvSlice(
			"OIDC_SCOPES",
			[]string{"openid", "email", "profile"},
		),

		Notifier:              getEnv("NOTIFIER", NotifierLog),
		NotifierWebhookURL:    getEnv("NOTIFIER_WEBHOOK_URL", ""),
		NotifierWebhookSecret: getEnv("NOTIFIER_WEBHOOK_SECRET", ""),
		NotifierWebhookHeader: getEnv("NOTIFIER_WEBHOOK_HEADER", "X-Webhook-Secret"),
		NotifierWebhookAuth:   getEnv("NOTIFIER_WEBHOOK_AUTH_MODE", "simple"),
		NotifierTimeout:       getEnvDuration("NOTIFIER_TIMEOUT", 10*time.Second),
		NotifierMaxRetries:    getEnvInt("NOTIFIER_MAX_RETRIES", 3),
		NotifierRetryDelay:    getEnvDuration("NOTIFIER_RETRY_DELAY", time.Second),
		NotifierMaxRetryDelay: getEnvDuration("NOTIFIER_MAX_RETRY_DELAY", 10*time.Second),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", "memory"),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 5),
		RegisterRateLimit:        getEnvInt("REGISTER_RATE_LIMIT", 5),
		ForgotPasswordRateLimit:  getEnvInt("FORGOT_PASSWORD_RATE_LIMIT", 3),
		ResetPasswordRateLimit:   getEnvInt("RESET_PASSWORD_RATE_LIMIT", 5),
		VerifyRateLimit:          getEnvInt("VERIFY_RATE_LIMIT", 10),

		CacheInitTimeout:        getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		UserCacheType:           getEnv("USER_CACHE_TYPE", CacheTypeMemory),
		UserCacheTTL:            getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		UserCacheClientTTL:      getEnvDuration("USER_CACHE_CLIENT_TTL", 30*time.Second),
		UserCacheSizePerConn:    getEnvInt("USER_CACHE_SIZE_PER_CONN", 32),
		MetricsCacheType:        getEnv("METRICS_CACHE_TYPE", CacheTypeMemory),
		MetricsCacheClientTTL:   getEnvDuration("METRICS_CACHE_CLIENT_TTL", 30*time.Second),
		MetricsCacheSizePerConn: getEnvInt("METRICS_CACHE_SIZE_PER_CONN", 32),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
	}
}

// Validate checks the configuration and returns the first violation found.
func (c *Config) Validate() error {
	if len(c.Secret) < 32 {
		return ErrSecretTooShort
	}

	switch c.AuthBackend {
	case AuthBackendSession:
		if c.SessionSecret == "" {
			return fmt.Errorf("%w: SESSION_SECRET is required for the session backend", ErrMissingSetting)
		}
	case AuthBackendJWT, AuthBackendJWTCookie:
	default:
		return fmt.Errorf("%w: AUTH_BACKEND=%q", ErrInvalidSetting, c.AuthBackend)
	}

	if c.UserAuthIdentifier != IdentifierEmail && c.UserAuthIdentifier != IdentifierUsername {
		return fmt.Errorf("%w: USER_AUTH_IDENTIFIER=%q", ErrInvalidSetting, c.UserAuthIdentifier)
	}

	if len(c.HashSchemes) == 0 {
		return fmt.Errorf("%w: HASH_SCHEMES", ErrMissingSetting)
	}
	for _, scheme := range c.HashSchemes {
		if scheme != HashSchemeArgon2id && scheme != HashSchemeBcrypt {
			return fmt.Errorf("%w: unknown hash scheme %q", ErrInvalidSetting, scheme)
		}
	}

	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("%w: DATABASE_DRIVER=%q", ErrInvalidSetting, c.DatabaseDriver)
	}

	if c.RateLimitStore != CacheTypeMemory && c.RateLimitStore != CacheTypeRedis {
		return fmt.Errorf("%w: RATE_LIMIT_STORE=%q", ErrInvalidSetting, c.RateLimitStore)
	}

	cacheTypes := []string{CacheTypeMemory, CacheTypeRedis, CacheTypeRedisAside}
	if !slices.Contains(cacheTypes, c.UserCacheType) {
		return fmt.Errorf("%w: USER_CACHE_TYPE=%q", ErrInvalidSetting, c.UserCacheType)
	}
	if !slices.Contains(cacheTypes, c.MetricsCacheType) {
		return fmt.Errorf("%w: METRICS_CACHE_TYPE=%q", ErrInvalidSetting, c.MetricsCacheType)
	}
	if c.TokenDenylistType != CacheTypeMemory && c.TokenDenylistType != CacheTypeRedis {
		return fmt.Errorf("%w: TOKEN_DENYLIST_TYPE=%q", ErrInvalidSetting, c.TokenDenylistType)
	}

	switch c.Notifier {
	case NotifierLog:
	case NotifierWebhook:
		if c.NotifierWebhookURL == "" {
			return fmt.Errorf("%w: NOTIFIER_WEBHOOK_URL is required for the webhook notifier", ErrMissingSetting)
		}
		switch c.NotifierWebhookAuth {
		case "none":
		case "simple", "hmac":
			if c.NotifierWebhookSecret == "" {
				return fmt.Errorf(
					"%w: NOTIFIER_WEBHOOK_SECRET is required for auth mode %q",
					ErrMissingSetting, c.NotifierWebhookAuth,
				)
			}
		default:
			return fmt.Errorf("%w: NOTIFIER_WEBHOOK_AUTH_MODE=%q", ErrInvalidSetting, c.NotifierWebhookAuth)
		}
	default:
		return fmt.Errorf("%w: NOTIFIER=%q", ErrInvalidSetting, c.Notifier)
	}

	for _, guard := range []GuardConfig{c.UserManagementGuard, c.RoleManagementGuard, c.AuditGuard} {
		if guard.Mode != GuardAccepted && guard.Mode != GuardRequired {
			return fmt.Errorf("%w: guard mode %q", ErrInvalidSetting, guard.Mode)
		}
	}

	for _, route := range c.Routes() {
		if route.Enabled && !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidRoutePath, route.Path)
		}
	}

	return nil
}

// Routes returns every route handler configuration.
func (c *Config) Routes() []RouteConfig {
	return []RouteConfig{
		c.RegisterRoute,
		c.VerifyRoute,
		c.LoginRoute,
		c.LogoutRoute,
		c.CurrentUserRoute,
		c.ForgotPasswordRoute,
		c.ResetPasswordRoute,
		c.UserManagementRoute,
		c.RoleManagementRoute,
		c.OAuth2Route,
		c.OAuth2AssociateRoute,
		c.AuditRoute,
	}
}

// UsesJWT reports whether the configured auth backend issues JWTs.
func (c *Config) UsesJWT() bool {
	return c.AuthBackend == AuthBackendJWT || c.AuthBackend == AuthBackendJWTCookie
}

// OAuthEnabled reports whether any OAuth2 provider is enabled.
func (c *Config) OAuthEnabled() bool {
	return c.GitHubOAuthEnabled || c.GiteaOAuthEnabled || c.OIDCOAuthEnabled
}

func routeFromEnv(name, defaultPath string) RouteConfig {
	return RouteConfig{
		Enabled: getEnvBool(name+"_ROUTE_ENABLED", true),
		Path:    getEnv(name+"_ROUTE_PATH", defaultPath),
	}
}

func guardFromEnv(name string) GuardConfig {
	return GuardConfig{
		Roles: getEnvSlice(name+"_GUARD_ROLES", []string{"administrator"}),
		Mode:  getEnv(name+"_GUARD_MODE", GuardAccepted),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
