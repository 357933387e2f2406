package runtime

import (
	"chat-presence/contract"
	"chat-presence/delivery"
	"chat-presence/domain/event"
	"context"
)

// NewHandlerTable binds every queued envelope type to the broadcast it produces.
func NewHandlerTable(broadcaster contract.Broadcaster) *delivery.HandlerTable {
	return delivery.NewHandlerTable().
		Register(delivery.TypeChatMessage, func(_ context.Context, env delivery.Envelope) error {
			var msg event.Message
			if err := env.Decode(&msg); err != nil {
				return err
			}
			broadcaster.Broadcast(msg)
			return nil
		}).
		Register(delivery.TypeStatusNotification, func(_ context.Context, env delivery.Envelope) error {
			var n event.StatusNotification
			if err := env.Decode(&n); err != nil {
				return err
			}
			broadcaster.Broadcast(n)
			return nil
		}).
		Register(delivery.TypeChatTermination, func(_ context.Context, env delivery.Envelope) error {
			var n event.TerminationNotification
			if err := env.Decode(&n); err != nil {
				return err
			}
			broadcaster.Broadcast(event.SessionTerminated{By: n.By, Reason: n.Reason, Timestamp: n.Timestamp})
			return nil
		})
}
