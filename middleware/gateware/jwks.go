package gateware

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-docauth"
)

// JWKSDecoder validates tokens signed by an external identity provider that
// publishes its keys as JWK Sets. It satisfies TokenDecoder so the gate can
// admit federated tokens the same way it admits locally minted ones.
type JWKSDecoder struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience string
	logger   Logger
}

var _ TokenDecoder = (*JWKSDecoder)(nil)

type JWKSConfig struct {
	// URLs lists one or more JWK Set endpoints, tried in order.
	URLs []string
	// Issuer and Audience, when set, are enforced on decode.
	Issuer   string
	Audience string
	Logger   Logger
}

// NewJWKSDecoder fetches the key sets and keeps them refreshed in the
// background for the life of the process.
func NewJWKSDecoder(cfg JWKSConfig) (*JWKSDecoder, error) {
	if len(cfg.URLs) == 0 {
		return nil, goerrors.New("at least one JWK Set URL is required", goerrors.CategoryBadInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	opts := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Error("background JWK Set refresh failed: %v", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	m := make(map[string]keyfunc.Options, len(cfg.URLs))
	for _, url := range cfg.URLs {
		m[url] = opts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWK Set URLs: %w", err)
	}

	return &JWKSDecoder{
		keyFunc:  multi.Keyfunc,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

// Decode verifies the token against the fetched key sets. checkExpiry is
// accepted for interface parity but federated tokens are always validated in
// full; there is no refresh exchange for them.
func (d *JWKSDecoder) Decode(raw string, checkExpiry bool) (auth.AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if d.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(d.issuer))
	}
	if d.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(d.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &auth.JWTClaims{}, d.keyFunc, parserOptions...)
	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, auth.ErrInvalidSignature
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, auth.ErrTokenExpired
		default:
			d.logger.Debug("federated token rejected: %v", err)
			return nil, auth.ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*auth.JWTClaims)
	if !ok || !token.Valid {
		return nil, auth.ErrTokenMalformed
	}

	return claims, nil
}
