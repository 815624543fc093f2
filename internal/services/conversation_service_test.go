package services

import (
	"context"
	"testing"
	"time"

	"cosmic-chat/internal/crypto"
	"cosmic-chat/internal/domain/message"
	"cosmic-chat/internal/domain/user"

	"github.com/google/uuid"
)

func newTestConversationService(t *testing.T) (*ConversationService, *fakeMessageRepo, *fakeUserRepo, *crypto.Codec) {
	t.Helper()
	codec, err := crypto.NewCodec(testSecret, "k1")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	msgRepo := &fakeMessageRepo{}
	userRepo := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	log := testLogger()
	users := NewUserService(userRepo, nil, log)
	messages := NewMessageService(msgRepo, userRepo, codec, &fakeBus{}, log, 100)
	svc := NewConversationService(msgRepo, users, messages, log, 500)
	return svc, msgRepo, userRepo, codec
}

func TestConversationsLatestMessagePerCounterpart(t *testing.T) {
	svc, msgRepo, userRepo, codec := newTestConversationService(t)
	me := addUser(userRepo, "ana")
	ben := addUser(userRepo, "ben")
	cleo := addUser(userRepo, "cleo")

	enc := func(s string) string {
		ct, err := codec.Encrypt(s)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		return ct
	}

	base := time.Now().UTC()
	// Appended oldest first; the fake returns them newest first.
	msgRepo.messages = []message.Message{
		{ID: uuid.New(), SenderID: me, ReceiverID: ben, Content: enc("old to ben"), IsEncrypted: true, CreatedAt: base},
		{ID: uuid.New(), SenderID: cleo, ReceiverID: me, Content: enc("from cleo"), IsEncrypted: true, CreatedAt: base.Add(time.Minute)},
		{ID: uuid.New(), SenderID: ben, ReceiverID: me, Content: enc("latest from ben"), IsEncrypted: true, CreatedAt: base.Add(2 * time.Minute)},
	}

	conversations, err := svc.ConversationsFor(context.Background(), me)
	if err != nil {
		t.Fatalf("ConversationsFor: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}

	if conversations[0].OtherUser.ID != ben || conversations[0].OtherUser.Name != "ben" {
		t.Fatalf("expected ben first, got %+v", conversations[0].OtherUser)
	}
	if conversations[0].LastMessage.Content != "latest from ben" {
		t.Fatalf("expected latest preview, got %q", conversations[0].LastMessage.Content)
	}
	if conversations[0].LastMessage.SenderID != ben {
		t.Fatalf("preview sender mismatch: %s", conversations[0].LastMessage.SenderID)
	}

	if conversations[1].OtherUser.ID != cleo {
		t.Fatalf("expected cleo second, got %+v", conversations[1].OtherUser)
	}
	if conversations[1].LastMessage.Content != "from cleo" {
		t.Fatalf("expected cleo preview, got %q", conversations[1].LastMessage.Content)
	}
}

func TestConversationsUnavailablePreview(t *testing.T) {
	svc, msgRepo, userRepo, _ := newTestConversationService(t)
	me := addUser(userRepo, "ana")
	ben := addUser(userRepo, "ben")

	msgRepo.messages = []message.Message{
		{ID: uuid.New(), SenderID: ben, ReceiverID: me, Content: "k1:deadbeef:deadbeef", IsEncrypted: true, CreatedAt: time.Now()},
	}

	conversations, err := svc.ConversationsFor(context.Background(), me)
	if err != nil {
		t.Fatalf("ConversationsFor: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}
	if conversations[0].LastMessage.Content != ContentUnavailable {
		t.Fatalf("expected placeholder preview, got %q", conversations[0].LastMessage.Content)
	}
}

func TestConversationsMissingCounterpart(t *testing.T) {
	svc, msgRepo, userRepo, codec := newTestConversationService(t)
	me := addUser(userRepo, "ana")
	ghost := uuid.New()

	ct, err := codec.Encrypt("hello?")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	msgRepo.messages = []message.Message{
		{ID: uuid.New(), SenderID: me, ReceiverID: ghost, Content: ct, IsEncrypted: true, CreatedAt: time.Now()},
	}

	conversations, err := svc.ConversationsFor(context.Background(), me)
	if err != nil {
		t.Fatalf("ConversationsFor: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}
	if conversations[0].OtherUser.ID != ghost || conversations[0].OtherUser.Name != "" {
		t.Fatalf("expected bare snapshot for missing counterpart, got %+v", conversations[0].OtherUser)
	}
	if conversations[0].LastMessage.Content != "hello?" {
		t.Fatalf("preview mismatch: %q", conversations[0].LastMessage.Content)
	}
}
