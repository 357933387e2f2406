package delivery

import (
	"context"

	"github.com/samber/lo"
)

type Handler func(ctx context.Context, env Envelope) error

// HandlerTable collects handlers during initialization.
// A Queue copies it on construction, later registrations are not seen.
type HandlerTable struct {
	handlers map[Type]Handler
}

func NewHandlerTable() *HandlerTable {
	return &HandlerTable{handlers: make(map[Type]Handler)}
}

// Register binds a handler to a type. Registering a type twice keeps the last handler.
func (t *HandlerTable) Register(typ Type, handler Handler) *HandlerTable {
	t.handlers[typ] = handler
	return t
}

func (t *HandlerTable) Types() []Type {
	return lo.Keys(t.handlers)
}

func (t *HandlerTable) freeze() map[Type]Handler {
	return lo.Assign(t.handlers)
}
