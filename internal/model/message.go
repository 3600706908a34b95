package model

import (
	"time"
)

// SenderAdmin is the sender recorded for administrator replies.
const SenderAdmin = "admin"

// SenderSystem is the sender recorded for application-authored messages.
const SenderSystem = "system"

// Message is one entry in a conversation. Messages are append-only;
// display order is creation time ascending.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"index;size:36"`
	SenderID       string    `json:"sender_id" gorm:"size:64"`
	Content        string    `json:"content"`
	System         bool      `json:"is_system_message" gorm:"column:is_system_message"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

// SendMessageRequest is the request to append a message to the
// session's active conversation.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// SendMessageResponse is returned after a message is appended.
type SendMessageResponse struct {
	Message *Message `json:"message"`
}

// ListMessagesResponse is the ordered history of one conversation.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}
