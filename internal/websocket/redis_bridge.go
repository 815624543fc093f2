package websocket

import (
	"context"
	"encoding/json"

	"cosmic-chat/internal/events"
)

// RedisBridge forwards bus events to the local hub so a message
// published by any server process reaches the receiver's live
// connections on this one.
type RedisBridge struct {
	bus *events.RedisEventBus
	hub *Hub
}

func NewRedisBridge(bus *events.RedisEventBus, hub *Hub) *RedisBridge {
	return &RedisBridge{bus: bus, hub: hub}
}

func (b *RedisBridge) Attach() {
	b.bus.Subscribe(events.EventMessageNew, events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.MessageNewEvent)
		if !ok {
			return nil
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		b.hub.BroadcastToUser(e.ReceiverID.String(), payload)
		return nil
	}))

	b.bus.Subscribe(events.EventMessageDelivered, events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.MessageDeliveredEvent)
		if !ok {
			return nil
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		b.hub.BroadcastToUser(e.SenderID.String(), payload)
		return nil
	}))
}
