package identity

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

// Module provides the principal-based authenticator.
var Module = fx.Module("identity",
	fx.Provide(NewAuthenticator),
	fx.Provide(NewResolver),
)

// Identity is the opaque address of a party: a customer, a merchant, a token,
// or the administrator. The engine never inspects its contents.
type Identity string

func (i Identity) IsZero() bool {
	return i == ""
}

func (i Identity) String() string {
	return string(i)
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
)

type principalKey struct{}

// WithPrincipal stamps the authenticated caller onto the context. The HTTP
// middleware does this after token verification; tests do it directly.
func WithPrincipal(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(principalKey{}).(Identity)
	if !ok || id.IsZero() {
		return "", false
	}
	return id, true
}

// Authenticator proves that the invoking principal is the identity an
// operation names as its actor.
type Authenticator interface {
	RequireAuth(ctx context.Context, claimed Identity) error
}

type principalAuthenticator struct{}

func NewAuthenticator() Authenticator {
	return principalAuthenticator{}
}

func (principalAuthenticator) RequireAuth(ctx context.Context, claimed Identity) error {
	if claimed.IsZero() {
		return ErrUnauthenticated
	}
	principal, ok := PrincipalFromContext(ctx)
	if !ok || principal != claimed {
		return ErrUnauthenticated
	}
	return nil
}
