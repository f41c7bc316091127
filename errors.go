package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Machine-readable text codes carried by the sentinel errors below. Clients
// branch on these rather than on error strings.
const (
	TextCodeAuthenticationFailed  = "AUTHENTICATION_FAILED"
	TextCodeInvalidSignature      = "INVALID_TOKEN_SIGNATURE"
	TextCodeUnsupportedAlgorithm  = "UNSUPPORTED_TOKEN_ALGORITHM"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeRefreshTokenNotFound  = "REFRESH_TOKEN_NOT_FOUND"
	TextCodeRefreshTokenReused    = "REFRESH_TOKEN_REUSED"
	TextCodeRefreshTokenExpired   = "REFRESH_TOKEN_EXPIRED"
	TextCodeIdentityMismatch      = "TOKEN_PAIR_IDENTITY_MISMATCH"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodePolicyViolation       = "PASSWORD_POLICY_VIOLATION"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodeInsufficientRole      = "INSUFFICIENT_ROLE"
	TextCodeMissingAuthentication = "MISSING_AUTHENTICATION"
)

// ErrAuthenticationFailed is returned for any failed login. It is
// deliberately generic: callers cannot tell an unknown user from a wrong
// password.
var ErrAuthenticationFailed = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidSignature is returned when a token's MAC does not verify.
var ErrInvalidSignature = goerrors.New("token signature verification failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnsupportedAlgorithm is returned when a token header declares any
// algorithm other than the pinned signing method.
var ErrUnsupportedAlgorithm = goerrors.New("token declares an unsupported signing algorithm", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnsupportedAlgorithm).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for structurally valid tokens past their
// expiration.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenNotFound is returned when a presented refresh token has no
// ledger record.
var ErrRefreshTokenNotFound = goerrors.New("refresh token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRefreshTokenNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenReused is returned when a rotated or revoked refresh token
// is presented again. The ledger treats this as theft and revokes every
// token for the owning identity as a side effect.
var ErrRefreshTokenReused = goerrors.New("refresh token already consumed", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenReused).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenExpired is returned when a refresh token is past its TTL.
var ErrRefreshTokenExpired = goerrors.New("refresh token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityMismatch is returned when the refresh token's owning identity
// differs from the access token's subject during a refresh exchange.
var ErrIdentityMismatch = goerrors.New("token pair identity mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned by ChangePassword when the current
// password does not verify.
var ErrInvalidCredentials = goerrors.New("current password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrPolicyViolation is returned when a new password fails policy, e.g. it
// equals the current one.
var ErrPolicyViolation = goerrors.New("new password violates password policy", goerrors.CategoryValidation).
	WithTextCode(TextCodePolicyViolation).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when an empty password is hashed.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError matches both our sentinel and raw jwt library errors.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError matches structural parse failures.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsReplayError reports whether err is the refresh-token reuse signal.
func IsReplayError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == TextCodeRefreshTokenReused
}
