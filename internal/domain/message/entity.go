package message

import (
	"time"

	"github.com/google/uuid"
)

// Delivery statuses recorded on the messages table.
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
)

// Message represents the messages table. Content holds ciphertext at
// rest whenever IsEncrypted is true; plaintext exists only transiently
// in memory and on the wire. The schema allows mixed encrypted/plain
// rows so pre-encryption records keep working.
type Message struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Content     string
	IsEncrypted bool
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Message) TableName() string {
	return "messages"
}
