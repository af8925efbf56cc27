package middleware

import (
	"strings"

	"github.com/mcpkit/mcpkit/protocol"
)

// StatePrincipal is the RequestContext.State key carrying the authenticated
// identity.
const StatePrincipal = "principal"

// Identity represents an authenticated caller.
type Identity struct {
	// ID is a unique identifier (user ID, API key ID).
	ID string
	// Name is a human-readable name.
	Name string
	// Metadata carries additional identity information.
	Metadata map[string]any
}

// PrincipalFromContext returns the authenticated identity stored by the auth
// middleware, or nil.
func PrincipalFromContext(rc *RequestContext) *Identity {
	id, _ := rc.State[StatePrincipal].(*Identity)
	return id
}

// Authenticator validates credentials and returns an identity, or nil when
// no credentials are present.
type Authenticator func(rc *RequestContext) (*Identity, error)

// AuthOption configures the authentication middleware.
type AuthOption func(*authConfig)

type authConfig struct {
	skipMethods  map[string]bool
	errorMessage string
}

// WithAuthSkipMethods specifies additional methods that bypass
// authentication. Handshake methods are always exempt.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// WithAuthErrorMessage sets a custom message for auth failures.
func WithAuthErrorMessage(msg string) AuthOption {
	return func(c *authConfig) {
		c.errorMessage = msg
	}
}

// Auth returns middleware that authenticates requests and stores the
// resulting identity in the context state.
func Auth(authenticator Authenticator, opts ...AuthOption) Middleware {
	cfg := &authConfig{
		skipMethods:  make(map[string]bool),
		errorMessage: "authentication required",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(rc *RequestContext, next Next) error {
		method := rc.Request.Method
		if protocol.IsHandshakeMethod(method) || cfg.skipMethods[method] {
			return next()
		}

		identity, err := authenticator(rc)
		if err != nil {
			return protocol.NewUnauthorized(cfg.errorMessage)
		}
		if identity == nil {
			return protocol.NewUnauthorized(cfg.errorMessage)
		}

		rc.Set(StatePrincipal, identity)
		return next()
	}
}

// BearerTokenAuthenticator validates "Authorization: Bearer <token>" request
// metadata. tokenValidator returns the identity for a valid token, or nil.
func BearerTokenAuthenticator(tokenValidator func(token string) *Identity) Authenticator {
	return func(rc *RequestContext) (*Identity, error) {
		auth := protocol.GetRequestMeta(rc.Context(), "Authorization")
		if auth == "" {
			auth = protocol.GetRequestMeta(rc.Context(), "authorization")
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return nil, nil
		}
		token := strings.TrimPrefix(auth, prefix)
		if token == "" {
			return nil, nil
		}
		return tokenValidator(token), nil
	}
}

// APIKeyAuthenticator validates an API key passed in request metadata under
// headerName.
func APIKeyAuthenticator(headerName string, keyValidator func(key string) *Identity) Authenticator {
	return func(rc *RequestContext) (*Identity, error) {
		key := protocol.GetRequestMeta(rc.Context(), headerName)
		if key == "" {
			key = protocol.GetRequestMeta(rc.Context(), strings.ToLower(headerName))
		}
		if key == "" {
			return nil, nil
		}
		return keyValidator(key), nil
	}
}

// StaticTokens creates a token validator from a fixed token -> identity map.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity {
		return tokens[token]
	}
}
