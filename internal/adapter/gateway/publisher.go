package gateway

import (
	"context"

	"github.com/zono819/tickpulse/internal/domain/protocol"
)

// Publisher delivers engine events to downstream consumers
type Publisher interface {
	// Publish sends one event
	Publish(ctx context.Context, ev protocol.Event) error

	// OnCommand registers a handler for commands sent back by consumers
	OnCommand(handler func(protocol.Command))

	// Close releases publisher resources
	Close() error
}
