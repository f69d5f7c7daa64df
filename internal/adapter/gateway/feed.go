package gateway

import (
	"context"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// TickFeed defines a source of raw market ticks
type TickFeed interface {
	// Connect establishes connection to the feed
	Connect(ctx context.Context) error

	// Disconnect closes connection
	Disconnect(ctx context.Context) error

	// Snapshot retrieves the latest quote of every symbol
	Snapshot(ctx context.Context) (entity.MarketSnapshot, error)

	// Symbols retrieves the instrument catalogue
	Symbols(ctx context.Context) ([]entity.SymbolConfig, error)

	// SubscribeTicks registers a handler for tick rounds.
	// Handlers are called from the feed goroutine, one round at a time.
	SubscribeTicks(ctx context.Context, handler func([]entity.RawTick)) error
}
