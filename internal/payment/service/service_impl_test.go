package service_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/outbox"
	outboxdomain "github.com/holdpay/holdpay/internal/outbox/domain"
	"github.com/holdpay/holdpay/internal/payment/domain"
	paymentrepo "github.com/holdpay/holdpay/internal/payment/repository"
	paymentservice "github.com/holdpay/holdpay/internal/payment/service"
	"github.com/holdpay/holdpay/internal/storage"
	"github.com/holdpay/holdpay/pkg/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	svc    domain.Service
	guard  *guard.Guard
	bus    *outbox.Bus
	policy *config.PolicyHolder
	db     *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&storage.Entry{}, &outboxdomain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	bus := outbox.NewBus()
	emitter := outbox.NewEmitter(outbox.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Bus:   bus,
	})
	g := guard.New(guard.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Auth: identity.NewAuthenticator(),
	})
	policy := config.NewStaticPolicyHolder(config.DefaultPolicy())

	svc := paymentservice.New(paymentservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  fakeClock,
		Policy: policy,
		Guard:  g,
		Outbox: emitter,
		Repo:   paymentrepo.Provide(),
	})

	return &fixture{svc: svc, guard: g, bus: bus, policy: policy, db: db}
}

func asPrincipal(id identity.Identity) context.Context {
	return identity.WithPrincipal(context.Background(), id)
}

func (f *fixture) createPayment(t *testing.T, customer, merchant identity.Identity, amount int64) uint64 {
	t.Helper()
	id, err := f.svc.Create(asPrincipal(customer), domain.CreatePaymentRequest{
		Customer: customer,
		Merchant: merchant,
		Amount:   big.NewInt(amount),
		Token:    "usdc",
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) initAdmin(t *testing.T) context.Context {
	t.Helper()
	require.NoError(t, f.guard.Initialize(context.Background(), "admin"))
	return asPrincipal("admin")
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	f := newFixture(t)

	for want := uint64(1); want <= 3; want++ {
		id := f.createPayment(t, "alice", "shop", 1000)
		require.Equal(t, want, id)
	}

	payment, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, payment.Status)
	require.Equal(t, identity.Identity("alice"), payment.Customer)
	require.Equal(t, identity.Identity("shop"), payment.Merchant)
	require.Equal(t, int64(1000), payment.Amount.Int64())

	count, err := f.svc.CountByCustomer(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	count, err = f.svc.CountByMerchant(context.Background(), "shop")
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestCreateRequiresCustomerSelfAuth(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(asPrincipal("mallory"), domain.CreatePaymentRequest{
		Customer: "alice",
		Merchant: "shop",
		Amount:   big.NewInt(100),
		Token:    "usdc",
	})
	require.ErrorIs(t, err, guard.ErrUnauthorized)

	_, err = f.svc.Create(context.Background(), domain.CreatePaymentRequest{
		Customer: "alice",
		Merchant: "shop",
		Amount:   big.NewInt(100),
		Token:    "usdc",
	})
	require.ErrorIs(t, err, guard.ErrUnauthorized)
}

func TestCreateAmountValidationPolicy(t *testing.T) {
	f := newFixture(t)

	// Default contract behavior: amounts pass through unchecked.
	id := f.createPayment(t, "alice", "shop", -50)
	payment, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(-50), payment.Amount.Int64())

	policy := config.DefaultPolicy()
	policy.Payments.ValidateAmount = true
	f.policy.Set(policy)

	_, err = f.svc.Create(asPrincipal("alice"), domain.CreatePaymentRequest{
		Customer: "alice",
		Merchant: "shop",
		Amount:   big.NewInt(-50),
		Token:    "usdc",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Create(asPrincipal("alice"), domain.CreatePaymentRequest{
		Customer: "alice",
		Merchant: "shop",
		Amount:   big.NewInt(10),
		Token:    "usdc",
	})
	require.NoError(t, err)
}

func TestCompleteLifecycle(t *testing.T) {
	f := newFixture(t)
	adminCtx := f.initAdmin(t)
	id := f.createPayment(t, "alice", "shop", 1000)

	var events []outboxdomain.Event
	f.bus.SubscribeAll(func(evt outboxdomain.Event) { events = append(events, evt) })

	require.NoError(t, f.svc.Complete(adminCtx, "admin", id))

	payment, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, payment.Status)

	require.Len(t, events, 1)
	require.Equal(t, domain.EventPaymentCompleted, events[0].Type)
	require.Equal(t, id, events[0].EntityID)

	// Same transition again: AlreadyProcessed. Different transition: InvalidStatus.
	require.ErrorIs(t, f.svc.Complete(adminCtx, "admin", id), domain.ErrAlreadyProcessed)
	require.ErrorIs(t, f.svc.Refund(adminCtx, "admin", id), domain.ErrInvalidStatus)
	require.ErrorIs(t, f.svc.Cancel(asPrincipal("alice"), "alice", id), domain.ErrInvalidStatus)

	require.Len(t, events, 1, "failed transitions emit nothing")
}

func TestRefundLifecycle(t *testing.T) {
	f := newFixture(t)
	adminCtx := f.initAdmin(t)
	id := f.createPayment(t, "alice", "shop", 1000)

	require.NoError(t, f.svc.Refund(adminCtx, "admin", id))

	payment, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, payment.Status)

	require.ErrorIs(t, f.svc.Refund(adminCtx, "admin", id), domain.ErrAlreadyProcessed)
	require.ErrorIs(t, f.svc.Complete(adminCtx, "admin", id), domain.ErrInvalidStatus)
}

func TestAdminTransitionsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	id := f.createPayment(t, "alice", "shop", 1000)

	// No admin initialized yet.
	require.ErrorIs(t, f.svc.Complete(asPrincipal("shop"), "shop", id), guard.ErrUnauthorized)

	adminCtx := f.initAdmin(t)
	require.ErrorIs(t, f.svc.Complete(asPrincipal("shop"), "shop", id), guard.ErrUnauthorized)
	require.ErrorIs(t, f.svc.Complete(adminCtx, "admin", 99), domain.ErrPaymentNotFound)
	require.NoError(t, f.svc.Complete(adminCtx, "admin", id))
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)

	byCustomer := f.createPayment(t, "alice", "shop", 100)
	byMerchant := f.createPayment(t, "alice", "shop", 200)

	require.ErrorIs(t, f.svc.Cancel(asPrincipal("outsider"), "outsider", byCustomer), guard.ErrUnauthorized)

	require.NoError(t, f.svc.Cancel(asPrincipal("alice"), "alice", byCustomer))
	require.NoError(t, f.svc.Cancel(asPrincipal("shop"), "shop", byMerchant))

	payment, err := f.svc.Get(context.Background(), byCustomer)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, payment.Status)

	require.ErrorIs(t, f.svc.Cancel(asPrincipal("alice"), "alice", byCustomer), domain.ErrInvalidStatus)
	require.ErrorIs(t, f.svc.Cancel(asPrincipal("alice"), "alice", 42), domain.ErrPaymentNotFound)
}

func TestGetMissingPayment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaginationWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		f.createPayment(t, "alice", "shop", int64(100*(i+1)))
	}

	page, err := f.svc.ListByMerchant(ctx, "shop", pagination.Page{Limit: 5, Offset: 5})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, uint64(6), page[0].ID)
	require.Equal(t, uint64(7), page[1].ID)

	page, err = f.svc.ListByMerchant(ctx, "shop", pagination.Page{Limit: 5, Offset: 7})
	require.NoError(t, err)
	require.Empty(t, page)

	page, err = f.svc.ListByCustomer(ctx, "alice", pagination.Page{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, uint64(1), page[0].ID)

	page, err = f.svc.ListByCustomer(ctx, "stranger", pagination.Page{Limit: 3})
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestIndexCountsSurviveTerminalStates(t *testing.T) {
	f := newFixture(t)
	adminCtx := f.initAdmin(t)

	first := f.createPayment(t, "alice", "shop", 100)
	f.createPayment(t, "alice", "shop", 200)

	require.NoError(t, f.svc.Complete(adminCtx, "admin", first))

	count, err := f.svc.CountByCustomer(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(2), count, "index counts never decrease")
}

func TestErrorCodes(t *testing.T) {
	require.Equal(t, 1, domain.Code(domain.ErrPaymentNotFound))
	require.Equal(t, 2, domain.Code(domain.ErrInvalidStatus))
	require.Equal(t, 3, domain.Code(domain.ErrAlreadyProcessed))
	require.Equal(t, 4, domain.Code(guard.ErrUnauthorized))
	require.Equal(t, 5, domain.Code(domain.ErrInvalidAmount))
}
