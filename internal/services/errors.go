package services

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrIdentifierTaken    = errors.New("identifier already associated with an account")
	ErrInvalidCredentials = errors.New("login failed, invalid input")
	ErrInvalidToken       = errors.New("token is invalid")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotActive      = errors.New("User is not active.")
	ErrUserNotVerified    = errors.New("not verified")

	// Role errors
	ErrRolesNotConfigured  = errors.New("roles have not been configured")
	ErrRoleNameTaken       = errors.New("role name already exists")
	ErrRoleAlreadyAssigned = errors.New("user already has role")
	ErrRoleNotAssigned     = errors.New("user does not have role")

	// OAuth2 errors
	ErrOAuthNotConfigured        = errors.New("oauth2 has not been configured")
	ErrOAuthProviderNotFound     = errors.New("oauth2 provider not found")
	ErrOAuthAccountNotFound      = errors.New("OAuth account not found")
	ErrOAuthAccountLinked        = errors.New("OAuth account is linked to another user")
	ErrOAuthCallbackFailed       = errors.New("oauth2 callback failed")
	ErrOAuthNoEmail              = errors.New("OAuth account without email")
	ErrUserAlreadyExists         = errors.New("User already exists.")
	ErrOAuthAutoRegisterDisabled = errors.New("OAuth auto-registration is disabled")
	ErrInvalidState              = errors.New("invalid oauth2 state")
)
