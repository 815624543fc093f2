package httpdto

import "time"

type ConversationUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationResponse struct {
	OtherUser   ConversationUser `json:"other_user"`
	LastMessage LastMessage      `json:"last_message"`
}
