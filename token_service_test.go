package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-docauth"
)

func testIdentity() auth.Identity {
	return auth.NewIdentity("usr-1", "pepe", "pepe@example.com", []string{auth.RoleUser, auth.RoleAdmin})
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	token, expiresAt, err := codec.Encode(testIdentity())
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := codec.Decode(token, true)
	require.NoError(t, err)

	assert.Equal(t, "usr-1", claims.Subject())
	assert.Equal(t, "usr-1", claims.UserID())
	assert.Equal(t, "pepe", claims.UserName())
	assert.Equal(t, "pepe@example.com", claims.UserEmail())
	assert.Equal(t, []string{auth.RoleUser, auth.RoleAdmin}, claims.UserRoles())
	assert.NotEmpty(t, claims.TokenID())
	assert.WithinDuration(t, expiresAt, claims.Expires(), time.Second)
}

func TestTokenCodec_UniqueTokenIDs(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	first, _, err := codec.Encode(testIdentity())
	require.NoError(t, err)
	second, _, err := codec.Encode(testIdentity())
	require.NoError(t, err)

	firstClaims, err := codec.Decode(first, true)
	require.NoError(t, err)
	secondClaims, err := codec.Decode(second, true)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.TokenID(), secondClaims.TokenID())
}

func TestTokenCodec_NilIdentity(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	_, _, err := codec.Encode(nil)
	require.Error(t, err)
}

func TestTokenCodec_ExpiredToken(t *testing.T) {
	cfg := testConfig()
	past := time.Now().Add(-2 * time.Hour)
	stale := auth.NewTokenCodec(cfg).WithClock(func() time.Time { return past })

	token, _, err := stale.Encode(testIdentity())
	require.NoError(t, err)

	verifier := auth.NewTokenCodec(cfg)

	// Expiry enforced.
	_, err = verifier.Decode(token, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))

	// The refresh path still recovers the claims with expiry checks off.
	claims, err := verifier.Decode(token, false)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID())
}

func TestTokenCodec_TamperedSignature(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	token, _, err := codec.Encode(testIdentity())
	require.NoError(t, err)

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = codec.Decode(tampered, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)

	// Signature verification is never skipped, even with expiry checks off.
	_, err = codec.Decode(tampered, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)
}

func TestTokenCodec_WrongKey(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	other := testConfig()
	other.SecretKey = "ffffffffffffffffffffffffffffffff"
	foreign, _, err := auth.NewTokenCodec(other).Encode(testIdentity())
	require.NoError(t, err)

	_, err = codec.Decode(foreign, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)
}

func TestTokenCodec_AlgorithmConfusion(t *testing.T) {
	cfg := testConfig()
	codec := auth.NewTokenCodec(cfg)

	// A token declaring alg=none is rejected before any verification.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(raw, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUnsupportedAlgorithm)

	// Same for a different HMAC variant signed with the right key.
	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err = hs512.SignedString([]byte(cfg.SecretKey))
	require.NoError(t, err)

	_, err = codec.Decode(raw, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUnsupportedAlgorithm)
}

func TestTokenCodec_MalformedToken(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := codec.Decode(raw, true)
		require.Error(t, err, "input: %q", raw)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	}
}

func TestTokenCodec_IssuerEnforced(t *testing.T) {
	cfg := testConfig()
	codec := auth.NewTokenCodec(cfg)

	other := testConfig()
	other.Issuer = "someone-else"
	foreignIssuer := auth.NewTokenCodec(other)

	token, _, err := foreignIssuer.Encode(testIdentity())
	require.NoError(t, err)

	_, err = codec.Decode(token, true)
	require.Error(t, err)
}

func TestNewOpaqueToken(t *testing.T) {
	codec := auth.NewTokenCodec(testConfig())

	seen := make(map[string]struct{})
	for i := 0; i < 32; i++ {
		token, err := codec.NewOpaqueToken()
		require.NoError(t, err)
		// 32 bytes base64url without padding.
		assert.Len(t, token, 43)
		assert.NotContains(t, token, "=")
		seen[token] = struct{}{}
	}
	assert.Len(t, seen, 32, "opaque tokens must not repeat")
}
