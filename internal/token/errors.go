package token

import "errors"

var (
	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is invalid. Every decode failure wraps it.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token expired")

	// ErrWrongAudience indicates the token was issued for another purpose
	ErrWrongAudience = errors.New("token audience mismatch")

	// ErrBadSignature indicates the token signature does not match
	ErrBadSignature = errors.New("token signature invalid")

	// ErrRevokedToken indicates the token id is on the denylist
	ErrRevokedToken = errors.New("token revoked")
)
