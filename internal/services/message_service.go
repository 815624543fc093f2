package services

import (
	"context"
	"strings"
	"time"

	"cosmic-chat/internal/crypto"
	"cosmic-chat/internal/domain/message"
	"cosmic-chat/internal/events"
	"cosmic-chat/internal/repository"
	cosmic_errors "cosmic-chat/pkg/errors"
	"cosmic-chat/pkg/logger"

	"github.com/google/uuid"
)

// ContentUnavailable replaces bodies the codec cannot recover, so one
// corrupt row never breaks a history read.
const ContentUnavailable = "message unavailable"

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	codec       *crypto.Codec
	bus         events.Publisher
	log         *logger.Logger
	pageLimit   int
}

func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, codec *crypto.Codec, bus events.Publisher, log *logger.Logger, pageLimit int) *MessageService {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		codec:       codec,
		bus:         bus,
		log:         log,
		pageLimit:   pageLimit,
	}
}

// Send encrypts and persists a message, then notifies the receiver over
// the event bus. The returned message carries the stored ciphertext.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, cosmic_errors.ErrInvalidInput
	}

	if _, err := s.userRepo.GetUserByID(ctx, receiverID); err != nil {
		return message.Message{}, err
	}

	ciphertext, err := s.codec.Encrypt(content)
	if err != nil {
		return message.Message{}, err
	}

	now := time.Now().UTC()
	msg := message.Message{
		ID:          uuid.New(),
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     ciphertext,
		IsEncrypted: true,
		Status:      message.StatusSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messageRepo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}

	// The event carries the plaintext; ciphertext never leaves storage.
	event := events.NewMessageNewEvent(msg.ID, senderID, receiverID, content, msg.Status, msg.CreatedAt)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.ErrorfCtx(ctx, "publish message.new failed: %v", err)
	}

	return msg, nil
}

// ListConversation returns the decrypted history between the viewer and
// the counterpart, oldest first, and marks the counterpart's messages
// delivered as a side effect of the viewer reading them.
func (s *MessageService) ListConversation(ctx context.Context, viewerID, otherID uuid.UUID) ([]message.Message, error) {
	msgs, err := s.messageRepo.ListBetween(ctx, viewerID, otherID, s.pageLimit)
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		msgs[i].Content = s.decryptOrPlaceholder(ctx, msgs[i])
	}

	if err := s.messageRepo.MarkConversationDelivered(ctx, otherID, viewerID); err != nil {
		s.log.ErrorfCtx(ctx, "mark conversation delivered failed: %v", err)
	} else if err := s.bus.Publish(ctx, events.NewMessageDeliveredEvent(otherID, viewerID)); err != nil {
		s.log.ErrorfCtx(ctx, "publish message.delivered failed: %v", err)
	}

	return msgs, nil
}

func (s *MessageService) decryptOrPlaceholder(ctx context.Context, m message.Message) string {
	decrypted := s.codec.Decrypt(m.Content)
	if m.IsEncrypted && decrypted == m.Content {
		s.log.ErrorfCtx(ctx, "undecryptable message %s", m.ID)
		return ContentUnavailable
	}
	return decrypted
}

// MarkRead flips a single message to READ. Only the receiver may do so.
func (s *MessageService) MarkRead(ctx context.Context, viewerID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != viewerID {
		return cosmic_errors.ErrForbidden
	}
	if msg.Status == message.StatusRead {
		return nil
	}
	if err := s.messageRepo.UpdateStatus(ctx, messageID, message.StatusRead); err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, events.NewMessageDeliveredEvent(msg.SenderID, msg.ReceiverID)); err != nil {
		s.log.ErrorfCtx(ctx, "publish message.delivered failed: %v", err)
	}
	return nil
}
