package repository

import (
	"context"

	"cosmic-chat/internal/domain/message"
	"cosmic-chat/internal/domain/user"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) error
	UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// ListBetween returns the newest limit messages exchanged between
	// the two users in either direction, ascending by creation time.
	ListBetween(ctx context.Context, userA, userB uuid.UUID, limit int) ([]message.Message, error)
	// ListForUser returns messages where the user is sender or receiver,
	// descending by creation time, capped at limit.
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]message.Message, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkConversationDelivered(ctx context.Context, senderID, receiverID uuid.UUID) error
}
