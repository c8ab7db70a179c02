package outbox

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/outbox/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module provides the outbox emitter and the in-process bus.
var Module = fx.Module("outbox",
	fx.Provide(NewNode),
	fx.Provide(NewBus),
	fx.Provide(NewEmitter),
)

// NewNode builds the snowflake generator for event IDs. Entity IDs are
// allocated sequentially by the storage counter, never here.
func NewNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Bus   *Bus
}

// Emitter writes outbox rows inside an operation's transaction and fans them
// out to bus subscribers after commit.
type Emitter struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	bus   *Bus
}

func NewEmitter(p Params) *Emitter {
	return &Emitter{
		log:   p.Log.Named("outbox"),
		genID: p.GenID,
		clock: p.Clock,
		bus:   p.Bus,
	}
}

// Record appends one event row using the caller's transaction handle. The
// returned event must be handed to Publish once the transaction commits.
func (e *Emitter) Record(ctx context.Context, db *gorm.DB, eventType, entityKind string, entityID uint64, payload any) (domain.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, err
	}
	evt := domain.Event{
		ID:         e.genID.Generate(),
		Type:       eventType,
		EntityKind: entityKind,
		EntityID:   entityID,
		Payload:    datatypes.JSON(raw),
		EmittedAt:  e.clock.Now(),
	}
	if err := db.WithContext(ctx).Create(&evt).Error; err != nil {
		return domain.Event{}, err
	}
	return evt, nil
}

// Publish fans a committed event out to subscribers.
func (e *Emitter) Publish(evt domain.Event) {
	if evt.ID == 0 {
		return
	}
	e.bus.Publish(evt)
	e.log.Debug("event published",
		zap.String("type", evt.Type),
		zap.String("entity_kind", evt.EntityKind),
		zap.Uint64("entity_id", evt.EntityID),
	)
}
