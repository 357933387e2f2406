//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=../mocks/mock_transport.go -package=mocks
package delivery

import (
	"context"
	"time"
)

// Transport is the durable queue underneath a Queue.
// ReceiveBatch may block up to wait; received envelopes stay invisible for
// visibility and reappear unless Delete is called with their receipt.
type Transport interface {
	Send(ctx context.Context, env Envelope) (string, error)
	ReceiveBatch(ctx context.Context, max int, wait, visibility time.Duration) ([]Received, error)
	Delete(ctx context.Context, receipt string) error
}
