// Package gateware admits or denies requests based on the verified access
// token and the route's required-role set. Role requirements are declared
// statically when routes are registered; nothing is resolved by reflection
// at request time.
package gateware

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-docauth"
)

var (
	defaultTokenLookup      = "header:" + router.HeaderAuthorization
	ErrTokenMissing         = errors.New("missing or malformed bearer token")
	ErrInsufficientRole     = errors.New("insufficient role for this endpoint")
	defaultDeniedRouteTitle = "Access denied"
)

// TokenDecoder validates a raw token and returns structured claims. The
// auth.TokenCodec satisfies it; so does the JWKS validator in this package.
type TokenDecoder interface {
	Decode(raw string, checkExpiry bool) (auth.AuthClaims, error)
}

// RouteRoles maps a route to the role set required to reach it. Keys may be
// literal paths ("/admin/users") or router patterns with named parameters
// and wildcards ("/documents/:id", "/files/*"); a guarded pattern covers
// every concrete path under it. It is built once at startup and consulted
// per request.
type RouteRoles map[string][]string

// RolesFor returns the declared role set for a request path; nil means the
// route is open. Literal entries win over pattern entries.
func (r RouteRoles) RolesFor(path string) []string {
	if r == nil {
		return nil
	}
	if roles, ok := r[path]; ok {
		return roles
	}
	for pattern, roles := range r {
		if matchRoutePattern(pattern, path) {
			return roles
		}
	}
	return nil
}

// matchRoutePattern matches a registered pattern against a concrete request
// path, segment by segment. ":name" matches any single segment, "*" matches
// the rest of the path.
func matchRoutePattern(pattern, path string) bool {
	if !strings.ContainsAny(pattern, ":*") {
		return false
	}

	patternSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")

	for i, seg := range patternSegs {
		if seg == "*" {
			return true
		}
		if i >= len(pathSegs) {
			return false
		}
		if strings.HasPrefix(seg, ":") {
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}

	return len(patternSegs) == len(pathSegs)
}

type Config struct {
	// Filter skips the gate entirely when it returns true.
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	// Decoder is required; it validates bearer tokens.
	Decoder TokenDecoder

	// RequiredRoles applies to every route this middleware instance guards.
	RequiredRoles []string
	// Routes supplies per-route role sets when one gate instance fronts the
	// whole router. A route present in neither place is open.
	Routes RouteRoles
	// RequireValidToken forces authentication even on routes that declare no
	// required roles.
	RequireValidToken bool

	ContextKey  string
	TokenLookup string
	AuthScheme  string
	Logger      Logger

	// ContextEnricher propagates claims into the standard Go context after a
	// successful validation.
	ContextEnricher func(c context.Context, claims auth.AuthClaims) context.Context
}

// ClaimsEnricher is the stock ContextEnricher. It stores the claims and the
// identity snapshot under the auth package context keys so handlers can use
// auth.ClaimsFromContext and auth.IdentityFromContext.
func ClaimsEnricher(c context.Context, claims auth.AuthClaims) context.Context {
	c = auth.WithClaimsContext(c, claims)
	return auth.WithIdentityContext(c, auth.IdentityFromClaims(claims))
}

// New builds the admission middleware.
func New(config ...Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			required := cfg.requiredRolesFor(ctx)
			if len(required) == 0 && !cfg.RequireValidToken {
				// No declared roles: open endpoint, identity not required.
				return next(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil || raw == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			claims, err := cfg.Decoder.Decode(raw, true)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if !claims.HasAnyRole(required) {
				cfg.Logger.Warn(
					"request denied: path=%s user=%s required_roles=%v actual_roles=%v",
					ctx.Path(), claims.UserName(), required, claims.UserRoles(),
				)
				return cfg.ErrorHandler(ctx, goerrors.Wrap(
					ErrInsufficientRole,
					goerrors.CategoryAuthz,
					"the authenticated identity lacks a required role",
				).WithTextCode(auth.TextCodeInsufficientRole).
					WithCode(goerrors.CodeForbidden).
					WithMetadata(map[string]any{
						"required_roles": required,
						"path":           ctx.Path(),
					}))
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				stdCtx := cfg.ContextEnricher(ctx.Context(), claims)
				ctx.SetContext(stdCtx)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Decoder == nil {
		panic("AUTH: gate middleware configuration: Decoder is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler(cfg.Logger)
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "identity"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) requiredRolesFor(ctx router.Context) []string {
	if len(cfg.RequiredRoles) > 0 {
		return cfg.RequiredRoles
	}
	return cfg.Routes.RolesFor(ctx.Path())
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// GetExtractors parses a lookup expression of the form
// "header:Authorization,cookie:jwt,query:auth_token" into extractors.
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

// ExtractRawTokenFromContext tries each extractor until one yields a token.
func ExtractRawTokenFromContext(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

type TokenExtractor func(c router.Context) (string, error)

// tokenFromHeader extracts a scheme-prefixed token from a request header.
func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			return "", ErrTokenMissing
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func tokenFromParam(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
