// Package support implements the coordination core of the platform:
// conversation lifecycle, live message channels, admin alert fan-out,
// and issue recording. All I/O goes through the collaborator interfaces
// below so the coordination logic itself stays deterministic.
package support

import (
	"context"

	"github.com/birdtrack/support-platform/internal/model"
)

// Store is the durable relational store behind the support tables.
type Store interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	UpdateConversationStatus(ctx context.Context, id string, status model.ConversationStatus) error
	CreateConversationMeta(ctx context.Context, meta *model.ConversationMeta) error
	SetConversationAttachments(ctx context.Context, conversationID string, urls []string) error
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	CreateIssue(ctx context.Context, issue *model.Issue) error
	HasPendingSupport(ctx context.Context) (bool, error)
}

// Bus is the change-event stream. Delivery is at-least-once with no
// ordering guarantee across subjects and no replay for events that
// fired while a subscriber was down.
type Bus interface {
	PublishConversationCreated(ctx context.Context, conv *model.Conversation) error
	PublishMessageCreated(ctx context.Context, msg *model.Message) error
	PublishIssueCreated(ctx context.Context, issue *model.Issue) error

	SubscribeMessages(conversationID string, fn func(model.Message)) (Subscription, error)
	SubscribeAllMessages(fn func(model.Message)) (Subscription, error)
	SubscribeConversations(fn func(model.Conversation)) (Subscription, error)
	SubscribeIssues(fn func(model.Issue)) (Subscription, error)
}

// Subscription is a live event listener. Unsubscribe must be idempotent;
// a handle that is never released leaks a listener.
type Subscription interface {
	Unsubscribe() error
}

// Mail is one outbound email.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers outbound email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, mail Mail) (string, error)
}

// Webhook posts a JSON body to the configured relay endpoint.
type Webhook interface {
	Post(ctx context.Context, body any) (int, error)
}

// Blob stores binary attachments and serves them by public URL.
type Blob interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	PublicURL(path string) string
}
