package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// opaqueTokenBytes gives refresh tokens 256 bits of entropy.
const opaqueTokenBytes = 32

// TokenCodecImpl implements the TokenCodec interface with a symmetric key
// and a pinned HS256 signing method.
type TokenCodecImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

var _ TokenCodec = (*TokenCodecImpl)(nil)

// NewTokenCodec creates a TokenCodec from the configuration.
func NewTokenCodec(cfg *Config) *TokenCodecImpl {
	var aud jwt.ClaimStrings
	if len(cfg.Audience) > 0 {
		aud = make(jwt.ClaimStrings, len(cfg.Audience))
		copy(aud, cfg.Audience)
	}

	return &TokenCodecImpl{
		signingKey: []byte(cfg.SecretKey),
		ttl:        cfg.AccessTokenTTL(),
		issuer:     cfg.Issuer,
		audience:   aud,
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (tc *TokenCodecImpl) WithLogger(logger Logger) *TokenCodecImpl {
	if logger != nil {
		tc.logger = logger
	}
	return tc
}

// WithClock injects a custom time source (useful for tests).
func (tc *TokenCodecImpl) WithClock(clock func() time.Time) *TokenCodecImpl {
	if clock != nil {
		tc.now = clock
	}
	return tc
}

// Encode signs an access token for the identity and returns it with its
// expiration. Every token carries a fresh jti.
func (tc *TokenCodecImpl) Encode(identity Identity) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := tc.now()
	expiresAt := now.Add(tc.ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tc.issuer,
			Subject:   identity.ID(),
			Audience:  tc.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      identity.ID(),
		Username: identity.Username(),
		Email:    identity.Email(),
		Roles:    append([]string(nil), identity.Roles()...),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return signed, expiresAt, nil
}

// Decode verifies the token signature and returns the structured claims.
// checkExpiry=false skips the time-based claim checks only; it exists for
// the refresh exchange, where a still-valid refresh token authorizes
// re-issuance after access-token expiry. Never use it to authorize requests.
func (tc *TokenCodecImpl) Decode(raw string, checkExpiry bool) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	if !checkExpiry {
		parserOptions = append(parserOptions, jwt.WithoutClaimsValidation())
	} else {
		if tc.issuer != "" {
			parserOptions = append(parserOptions, jwt.WithIssuer(tc.issuer))
		}
		if len(tc.audience) > 0 {
			parserOptions = append(parserOptions, jwt.WithAudience(tc.audience...))
		}
	}

	token, err := jwt.ParseWithClaims(raw, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		// The signing algorithm is pinned. A token declaring anything else,
		// including other HMAC variants, is rejected before verification.
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			tc.logger.Warn("token rejected: declared algorithm %v", t.Header["alg"])
			return nil, ErrUnsupportedAlgorithm
		}
		return tc.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, ErrUnsupportedAlgorithm):
			return nil, ErrUnsupportedAlgorithm
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		tc.logger.Error("token codec could not map verified claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// NewOpaqueToken returns a URL-safe random string with 256 bits of entropy,
// used as the refresh-token value.
func (tc *TokenCodecImpl) NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
