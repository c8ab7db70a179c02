package guard_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGuard(t *testing.T) *guard.Guard {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&storage.Entry{}))
	return guard.New(guard.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Auth: identity.NewAuthenticator(),
	})
}

func asPrincipal(id identity.Identity) context.Context {
	return identity.WithPrincipal(context.Background(), id)
}

func TestInitializeOnce(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	_, ok, err := g.Admin(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, g.Initialize(ctx, "admin"))

	admin, ok, err := g.Admin(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, identity.Identity("admin"), admin)

	require.ErrorIs(t, g.Initialize(ctx, "other"), guard.ErrAlreadyInitialized)
	require.ErrorIs(t, g.Initialize(ctx, "admin"), guard.ErrAlreadyInitialized)
}

func TestRequireSelf(t *testing.T) {
	g := newGuard(t)

	require.NoError(t, g.RequireSelf(asPrincipal("alice"), "alice"))
	require.ErrorIs(t, g.RequireSelf(asPrincipal("alice"), "bob"), guard.ErrUnauthorized)
	require.ErrorIs(t, g.RequireSelf(context.Background(), "alice"), guard.ErrUnauthorized)
	require.ErrorIs(t, g.RequireSelf(asPrincipal("alice"), ""), guard.ErrUnauthorized)
}

func TestRequireAdmin(t *testing.T) {
	g := newGuard(t)

	// Nobody is authorized before initialization.
	require.ErrorIs(t, g.RequireAdmin(asPrincipal("admin"), "admin"), guard.ErrUnauthorized)

	require.NoError(t, g.Initialize(context.Background(), "admin"))

	require.NoError(t, g.RequireAdmin(asPrincipal("admin"), "admin"))
	require.ErrorIs(t, g.RequireAdmin(asPrincipal("mallory"), "mallory"), guard.ErrUnauthorized)
	// Claiming to be admin without being the principal fails self-auth.
	require.ErrorIs(t, g.RequireAdmin(asPrincipal("mallory"), "admin"), guard.ErrUnauthorized)
}

func TestRequireParticipant(t *testing.T) {
	g := newGuard(t)

	require.NoError(t, g.RequireParticipant(asPrincipal("customer"), "customer", "customer", "merchant"))
	require.NoError(t, g.RequireParticipant(asPrincipal("merchant"), "merchant", "customer", "merchant"))
	require.ErrorIs(t, g.RequireParticipant(asPrincipal("outsider"), "outsider", "customer", "merchant"), guard.ErrUnauthorized)
}
