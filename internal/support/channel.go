package support

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
)

const channelBuffer = 64

// Channel maintains an ordered, de-duplicated live view of one
// conversation's messages for one viewer. The handle belongs to the
// viewer instance, not the conversation id: re-attaching the same id
// through a new channel never inherits the old listener.
type Channel struct {
	store  Store
	bus    Bus
	logger *logger.Logger

	mu             sync.Mutex
	conversationID string
	sub            Subscription
	seen           map[string]struct{}
	messages       []model.Message
	updates        chan model.Message
}

// NewChannel creates a detached channel.
func NewChannel(store Store, bus Bus, log *logger.Logger) *Channel {
	return &Channel{
		store:  store,
		bus:    bus,
		logger: log,
	}
}

// Attach subscribes to the conversation's live message events and then
// fetches the existing history. The subscription starts first so a row
// inserted during the fetch cannot be missed; the merge de-duplicates
// by message id and keeps creation-time order, so a row delivered by
// both paths appears once.
//
// A failed fetch returns an error wrapping ErrHistoryUnavailable but
// leaves the subscription live: the viewer still receives subsequent
// messages (degraded mode). A dropped transport connection is not
// retried here; events during a gap are lost until re-attach.
func (c *Channel) Attach(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return ErrChannelAttached
	}
	c.conversationID = conversationID
	c.seen = make(map[string]struct{})
	c.messages = nil
	c.updates = make(chan model.Message, channelBuffer)
	c.mu.Unlock()

	sub, err := c.bus.SubscribeMessages(conversationID, func(msg model.Message) {
		c.admit(conversationID, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to conversation %s: %w", conversationID, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	history, err := c.store.ListMessages(ctx, conversationID)
	if err != nil {
		c.logger.Warn("initial fetch failed, live-only view",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	for _, msg := range history {
		c.admit(conversationID, msg)
	}
	return nil
}

// admit merges one row into the view. Events that outlived a detach or
// belong to a previously attached conversation are dropped.
func (c *Channel) admit(conversationID string, msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.updates == nil || c.conversationID != conversationID || msg.ConversationID != conversationID {
		return
	}
	if _, dup := c.seen[msg.ID]; dup {
		return
	}
	c.seen[msg.ID] = struct{}{}

	c.messages = append(c.messages, msg)
	sort.SliceStable(c.messages, func(i, j int) bool {
		if c.messages[i].CreatedAt.Equal(c.messages[j].CreatedAt) {
			return c.messages[i].ID < c.messages[j].ID
		}
		return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
	})

	select {
	case c.updates <- msg:
	default:
		// Slow consumer; the row stays in Snapshot even when the
		// update notification is dropped.
		c.logger.Warn("channel update dropped",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", msg.ID),
		)
	}
}

// Snapshot returns the current ordered view.
func (c *Channel) Snapshot() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Updates delivers rows newly admitted to the view, in admission order.
func (c *Channel) Updates() <-chan model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

// Detach releases the subscription. Idempotent; after Detach no event
// from the detached conversation reaches this channel, and the channel
// may be re-attached to another conversation.
func (c *Channel) Detach() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.conversationID = ""
	c.updates = nil
	c.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		c.logger.Warn("unsubscribe failed", zap.Error(err))
	}
}
