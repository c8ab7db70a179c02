package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/outbox"
	"github.com/holdpay/holdpay/internal/outbox/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newEmitter(t *testing.T) (*outbox.Emitter, *outbox.Bus, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	bus := outbox.NewBus()
	emitter := outbox.NewEmitter(outbox.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Bus:   bus,
	})
	return emitter, bus, db
}

func TestRecordAndPublish(t *testing.T) {
	ctx := context.Background()
	emitter, bus, db := newEmitter(t)

	var received []domain.Event
	bus.Subscribe("payment.completed", func(evt domain.Event) {
		received = append(received, evt)
	})

	var evt domain.Event
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		evt, err = emitter.Record(ctx, tx, "payment.completed", domain.EntityKindPayment, 7, map[string]any{"amount": "1000"})
		return err
	})
	require.NoError(t, err)

	emitter.Publish(evt)

	require.Len(t, received, 1)
	require.Equal(t, uint64(7), received[0].EntityID)

	var count int64
	require.NoError(t, db.Model(&domain.Event{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	emitter, bus, db := newEmitter(t)

	var published int
	bus.SubscribeAll(func(domain.Event) { published++ })

	sentinel := errors.New("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := emitter.Record(ctx, tx, "refund.approved", domain.EntityKindRefund, 3, map[string]any{})
		require.NoError(t, err)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&domain.Event{}).Count(&count).Error)
	require.Zero(t, count, "aborted operations leave no event rows")
	require.Zero(t, published)
}

func TestPublishIgnoresZeroEvent(t *testing.T) {
	emitter, bus, _ := newEmitter(t)

	var published int
	bus.SubscribeAll(func(domain.Event) { published++ })

	emitter.Publish(domain.Event{})
	require.Zero(t, published)
}
