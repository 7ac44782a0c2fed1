package event

import "go.uber.org/fx"

var Module = fx.Module("event.service",
	fx.Provide(NewService),
)

// Dispatch relays the outbox to asynq; it needs task.Client.
var Dispatch = fx.Module("event.dispatcher",
	fx.Provide(NewDispatcher),
	fx.Invoke(StartDispatcher),
)

// Worker consumes the relayed events; it needs task.Server.
var Worker = fx.Module("event.worker",
	fx.Provide(NewConsumer),
	fx.Invoke(RegisterConsumer),
)
