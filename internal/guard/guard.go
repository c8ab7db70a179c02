// Package guard enforces who may invoke which lifecycle transition: the
// acting party itself, one of a payment's participants, or the stored
// administrator.
package guard

import (
	"context"
	"errors"

	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module provides the authorization guard.
var Module = fx.Module("guard",
	fx.Provide(New),
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already_initialized")
)

var adminKey = storage.NewKey("admin")

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Auth identity.Authenticator
}

type Guard struct {
	db   *gorm.DB
	log  *zap.Logger
	auth identity.Authenticator
}

func New(p Params) *Guard {
	return &Guard{
		db:   p.DB,
		log:  p.Log.Named("guard"),
		auth: p.Auth,
	}
}

// Initialize stores the administrator identity. It can succeed exactly once.
func (g *Guard) Initialize(ctx context.Context, admin identity.Identity) error {
	if admin.IsZero() {
		return ErrUnauthorized
	}
	err := g.db.Transaction(func(tx *gorm.DB) error {
		exists, err := storage.Has(ctx, tx, adminKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized
		}
		return storage.Set(ctx, tx, adminKey, admin)
	})
	if err != nil {
		return err
	}
	g.log.Info("administrator initialized", zap.String("admin", admin.String()))
	return nil
}

// Admin returns the stored administrator identity, if one has been set.
func (g *Guard) Admin(ctx context.Context) (identity.Identity, bool, error) {
	var admin identity.Identity
	ok, err := storage.Get(ctx, g.db, adminKey, &admin)
	if err != nil {
		return "", false, err
	}
	return admin, ok, nil
}

// RequireSelf verifies that the invoking principal is the named actor.
func (g *Guard) RequireSelf(ctx context.Context, actor identity.Identity) error {
	if err := g.auth.RequireAuth(ctx, actor); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdmin verifies self-authentication and that the actor is the stored
// administrator. An uninitialized engine authorizes nobody.
func (g *Guard) RequireAdmin(ctx context.Context, actor identity.Identity) error {
	if err := g.RequireSelf(ctx, actor); err != nil {
		return err
	}
	admin, ok, err := g.Admin(ctx)
	if err != nil {
		return err
	}
	if !ok || actor != admin {
		return ErrUnauthorized
	}
	return nil
}

// RequireParticipant verifies that the actor is one of the given parties.
// Self-authentication is checked first.
func (g *Guard) RequireParticipant(ctx context.Context, actor identity.Identity, parties ...identity.Identity) error {
	if err := g.RequireSelf(ctx, actor); err != nil {
		return err
	}
	for _, party := range parties {
		if actor == party {
			return nil
		}
	}
	return ErrUnauthorized
}
