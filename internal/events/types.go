package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageNew       EventType = "message.new"
	EventMessageDelivered EventType = "message.delivered"
)

// Event is anything the bus can carry.
type Event interface {
	EventType() EventType
	Channels() []string
}

// EventHandler consumes events delivered by the bus.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// BaseEvent carries the type tag used for dispatch after unmarshalling.
type BaseEvent struct {
	EventTypeVal EventType `json:"event_type"`
}

// MessageNewEvent is published when a message is persisted. Content is
// the decrypted body: the event only travels over the realtime fabric,
// never to disk.
type MessageNewEvent struct {
	BaseEvent
	MessageID  uuid.UUID `json:"message_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewMessageNewEvent(messageID, senderID, receiverID uuid.UUID, content, status string, createdAt time.Time) *MessageNewEvent {
	return &MessageNewEvent{
		BaseEvent:  BaseEvent{EventTypeVal: EventMessageNew},
		MessageID:  messageID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Status:     status,
		CreatedAt:  createdAt,
	}
}

func (e *MessageNewEvent) EventType() EventType { return EventMessageNew }

func (e *MessageNewEvent) Channels() []string {
	return []string{"user:" + e.ReceiverID.String()}
}

// MessageDeliveredEvent notifies a sender that the counterpart received
// their pending messages.
type MessageDeliveredEvent struct {
	BaseEvent
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
}

func NewMessageDeliveredEvent(senderID, receiverID uuid.UUID) *MessageDeliveredEvent {
	return &MessageDeliveredEvent{
		BaseEvent:  BaseEvent{EventTypeVal: EventMessageDelivered},
		SenderID:   senderID,
		ReceiverID: receiverID,
	}
}

func (e *MessageDeliveredEvent) EventType() EventType { return EventMessageDelivered }

func (e *MessageDeliveredEvent) Channels() []string {
	return []string{"user:" + e.SenderID.String()}
}

// Publisher is the producing half of the bus, injected into services.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
