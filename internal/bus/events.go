package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/internal/support"
)

const (
	// StreamName is the JetStream stream retaining every support event
	// for audit. Live subscribers use core subjects, not this stream.
	StreamName = "SUPPORT"

	// SubjectPrefix is the prefix for all support subjects.
	SubjectPrefix = "support"
)

// ConversationSubject is the subject for conversation-created events.
func ConversationSubject() string {
	return fmt.Sprintf("%s.conversation.created", SubjectPrefix)
}

// MessageSubject returns the subject for one conversation's messages.
func MessageSubject(conversationID string) string {
	return fmt.Sprintf("%s.message.%s", SubjectPrefix, conversationID)
}

// MessageWildcard matches message events across all conversations.
func MessageWildcard() string {
	return fmt.Sprintf("%s.message.*", SubjectPrefix)
}

// IssueSubject is the subject for issue-created events.
func IssueSubject() string {
	return fmt.Sprintf("%s.issue.created", SubjectPrefix)
}

// EnsureStream ensures the audit stream exists. Publishing to the core
// subjects below is captured by this stream automatically.
func (c *Client) EnsureStream(ctx context.Context) error {
	_, err := c.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = c.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Support conversation, message, and issue events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishConversationCreated publishes a conversation insert event.
func (c *Client) PublishConversationCreated(ctx context.Context, conv *model.Conversation) error {
	return c.publish(ConversationSubject(), conv)
}

// PublishMessageCreated publishes a message insert event.
func (c *Client) PublishMessageCreated(ctx context.Context, msg *model.Message) error {
	return c.publish(MessageSubject(msg.ConversationID), msg)
}

// PublishIssueCreated publishes an issue insert event.
func (c *Client) PublishIssueCreated(ctx context.Context, issue *model.Issue) error {
	return c.publish(IssueSubject(), issue)
}

func (c *Client) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeMessages delivers message events for one conversation.
func (c *Client) SubscribeMessages(conversationID string, fn func(model.Message)) (support.Subscription, error) {
	return c.subscribe(MessageSubject(conversationID), func(data []byte) {
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed message event", zap.Error(err))
			return
		}
		fn(msg)
	})
}

// SubscribeAllMessages delivers message events across every conversation.
func (c *Client) SubscribeAllMessages(fn func(model.Message)) (support.Subscription, error) {
	return c.subscribe(MessageWildcard(), func(data []byte) {
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed message event", zap.Error(err))
			return
		}
		fn(msg)
	})
}

// SubscribeConversations delivers conversation-created events.
func (c *Client) SubscribeConversations(fn func(model.Conversation)) (support.Subscription, error) {
	return c.subscribe(ConversationSubject(), func(data []byte) {
		var conv model.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			c.logger.Warn("dropping malformed conversation event", zap.Error(err))
			return
		}
		fn(conv)
	})
}

// SubscribeIssues delivers issue-created events.
func (c *Client) SubscribeIssues(fn func(model.Issue)) (support.Subscription, error) {
	return c.subscribe(IssueSubject(), func(data []byte) {
		var issue model.Issue
		if err := json.Unmarshal(data, &issue); err != nil {
			c.logger.Warn("dropping malformed issue event", zap.Error(err))
			return
		}
		fn(issue)
	})
}

func (c *Client) subscribe(subject string, handle func([]byte)) (support.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(m *nats.Msg) {
		handle(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return &subscription{sub: sub}, nil
}

type subscription struct {
	sub *nats.Subscription
}

// Unsubscribe releases the underlying NATS subscription. Safe to call
// more than once.
func (s *subscription) Unsubscribe() error {
	if s.sub == nil || !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}
