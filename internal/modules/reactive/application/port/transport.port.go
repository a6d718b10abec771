package port

import (
	"context"

	"reactWs/internal/modules/reactive/domain"
)

// Inbound yields the frames sent by the peer. A clean close from the peer is reported as io.EOF.
type Inbound interface {
	Read(ctx context.Context) (domain.Frame, error)
}

// Outbound writes towards the peer. Write is only ever called from one goroutine at a time;
// Close may be called concurrently with it.
type Outbound interface {
	Write(ctx context.Context, f domain.Frame) error
	Ping(ctx context.Context) error
	Close(code int, reason string) error
}
