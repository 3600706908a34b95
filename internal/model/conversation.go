// Package model defines data structures for the support platform.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// ConversationStatus is the lifecycle status of a support conversation.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// AnonymousUserID is the actor recorded when no authenticated user exists.
const AnonymousUserID = "anonymous"

// Conversation represents one support chat thread. Rows are never
// physically deleted; closing a conversation only flips its status.
type Conversation struct {
	ID        string             `json:"id" gorm:"primaryKey;size:36"`
	UserID    string             `json:"user_id" gorm:"index;size:64"`
	Status    ConversationStatus `json:"status" gorm:"index;size:16"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ConversationMeta holds the submitter details captured when a
// conversation is opened. Written once at creation; the attachment list
// is appended after uploads complete. Admin-opened threads carry no row.
type ConversationMeta struct {
	ConversationID string         `json:"conversation_id" gorm:"primaryKey;size:36"`
	Name           string         `json:"name" gorm:"size:128"`
	Email          string         `json:"email" gorm:"size:256"`
	Description    string         `json:"description"`
	Attachments    datatypes.JSON `json:"attachments,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// StartChatRequest is the request to open a support conversation.
type StartChatRequest struct {
	Name        string             `json:"name" validate:"required"`
	Email       string             `json:"email" validate:"required,email"`
	Description string             `json:"description" validate:"required"`
	Attachments []AttachmentUpload `json:"attachments,omitempty" validate:"dive"`
}

// AttachmentUpload is one file attached to a StartChatRequest. Data is
// base64-encoded by the client.
type AttachmentUpload struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type"`
	Data        string `json:"data" validate:"required"`
}

// StartChatResponse is returned after a conversation is opened.
type StartChatResponse struct {
	Conversation *Conversation `json:"conversation"`
	WelcomeID    string        `json:"welcome_message_id"`
}

// EndChatResponse reports the outcome of closing a conversation. The
// summary email is a side channel; its failure never fails the close.
type EndChatResponse struct {
	Closed      bool `json:"closed"`
	SummarySent bool `json:"summary_sent"`
}

// ConversationListResponse is the admin listing of active conversations.
type ConversationListResponse struct {
	Conversations []ConversationWithMeta `json:"conversations"`
	Total         int                    `json:"total"`
}

// ConversationWithMeta pairs a conversation with its submitter metadata,
// when present.
type ConversationWithMeta struct {
	Conversation Conversation      `json:"conversation"`
	Meta         *ConversationMeta `json:"meta,omitempty"`
}
