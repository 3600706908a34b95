package support

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
	"github.com/birdtrack/support-platform/pkg/metrics"
)

// AlertKind names the event class that raised an admin alert.
type AlertKind string

const (
	AlertConversation AlertKind = "conversation"
	AlertMessage      AlertKind = "message"
	AlertIssue        AlertKind = "issue"
)

// Alert is one admin notification. Sound marks whether the client
// should play the audible cue; rapid-fire alerts keep the pending flag
// but coalesce the sound.
type Alert struct {
	Kind   AlertKind `json:"kind"`
	Detail string    `json:"detail"`
	Sound  bool      `json:"sound"`
	At     time.Time `json:"at"`
}

const soundCoalesceWindow = 2 * time.Second

// Notifier watches new conversations, non-system messages, and issues
// for administrator sessions and raises a combined pending-support flag
// plus per-event alerts.
type Notifier struct {
	store  Store
	bus    Bus
	logger *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	started   bool
	pending   bool
	lastSound time.Time
	subs      []Subscription
	alerts    chan Alert
}

// NewNotifier creates a stopped notifier.
func NewNotifier(store Store, bus Bus, log *logger.Logger) *Notifier {
	return &Notifier{
		store:  store,
		bus:    bus,
		logger: log,
		now:    time.Now,
		alerts: make(chan Alert, 16),
	}
}

// Start subscribes to the three support event streams. It is a no-op
// unless the role is resolved-admin: until admin status resolves, no
// listener exists that could leak conversation activity to a non-admin.
func (n *Notifier) Start(role identity.Role) error {
	if !role.IsAdmin() {
		return nil
	}

	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = true
	n.mu.Unlock()

	convSub, err := n.bus.SubscribeConversations(func(conv model.Conversation) {
		n.raise(AlertConversation, fmt.Sprintf("new support conversation from %s", conv.UserID))
	})
	if err != nil {
		n.Stop()
		return fmt.Errorf("failed to watch conversations: %w", err)
	}
	n.track(convSub)

	msgSub, err := n.bus.SubscribeAllMessages(func(msg model.Message) {
		if msg.System {
			return
		}
		n.raise(AlertMessage, fmt.Sprintf("new message from %s", msg.SenderID))
	})
	if err != nil {
		n.Stop()
		return fmt.Errorf("failed to watch messages: %w", err)
	}
	n.track(msgSub)

	issueSub, err := n.bus.SubscribeIssues(func(issue model.Issue) {
		n.raise(AlertIssue, fmt.Sprintf("new issue %s", issue.CaseNumber))
	})
	if err != nil {
		n.Stop()
		return fmt.Errorf("failed to watch issues: %w", err)
	}
	n.track(issueSub)

	return nil
}

func (n *Notifier) track(sub Subscription) {
	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
}

func (n *Notifier) raise(kind AlertKind, detail string) {
	n.mu.Lock()
	n.pending = true
	now := n.now()
	sound := now.Sub(n.lastSound) >= soundCoalesceWindow
	if sound {
		n.lastSound = now
	}
	alerts := n.alerts
	n.mu.Unlock()

	metrics.AlertsTotal.WithLabelValues(string(kind)).Inc()

	alert := Alert{Kind: kind, Detail: detail, Sound: sound, At: now}
	select {
	case alerts <- alert:
	default:
		// Dropped alert notifications never clear the pending flag.
		n.logger.Warn("alert dropped", zap.String("kind", string(kind)))
	}
}

// CheckExisting reconciles against the store: activity that happened
// before the listeners attached still raises the pending flag, without
// an alert.
func (n *Notifier) CheckExisting(ctx context.Context) error {
	pending, err := n.store.HasPendingSupport(ctx)
	if err != nil {
		return fmt.Errorf("failed to check pending support: %w", err)
	}
	if pending {
		n.mu.Lock()
		n.pending = true
		n.mu.Unlock()
	}
	return nil
}

// Pending reports whether unread support activity exists.
func (n *Notifier) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

// ClearPending resets the flag, typically after the admin opens the
// support panel.
func (n *Notifier) ClearPending() {
	n.mu.Lock()
	n.pending = false
	n.mu.Unlock()
}

// Alerts delivers live alert notifications.
func (n *Notifier) Alerts() <-chan Alert {
	return n.alerts
}

// Stop releases every subscription. Idempotent.
func (n *Notifier) Stop() {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.started = false
	n.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Warn("unsubscribe failed", zap.Error(err))
		}
	}
}
