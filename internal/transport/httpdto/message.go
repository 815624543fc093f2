package httpdto

import "time"

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// MessageResponse is the wire shape of a message. Content carries the
// ciphertext on create responses and the decrypted body on reads.
type MessageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	Content     string    `json:"content"`
	IsEncrypted bool      `json:"is_encrypted"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
