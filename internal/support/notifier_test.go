package support

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
)

func drainAlert(t *testing.T, n *Notifier) Alert {
	t.Helper()
	select {
	case alert := <-n.Alerts():
		return alert
	case <-time.After(time.Second):
		t.Fatal("no alert delivered")
		return Alert{}
	}
}

func TestNotifierIgnoresNonAdmins(t *testing.T) {
	bus := newFakeBus()
	n := NewNotifier(newFakeStore(), bus, logger.NewNop())
	defer n.Stop()

	require.NoError(t, n.Start(identity.RoleMember))
	assert.Equal(t, 0, bus.activeSubs())

	require.NoError(t, n.Start(identity.RoleUnknown))
	assert.Equal(t, 0, bus.activeSubs())

	// No listener means conversation activity never reaches this session.
	require.NoError(t, bus.PublishConversationCreated(context.Background(), &model.Conversation{
		ID:     uuid.Must(uuid.NewV7()).String(),
		UserID: "user-1",
		Status: model.ConversationActive,
	}))
	assert.False(t, n.Pending())
}

func TestNotifierRaisesOnConversation(t *testing.T) {
	bus := newFakeBus()
	n := NewNotifier(newFakeStore(), bus, logger.NewNop())
	defer n.Stop()

	require.NoError(t, n.Start(identity.RoleAdmin))
	assert.Equal(t, 3, bus.activeSubs())

	require.NoError(t, bus.PublishConversationCreated(context.Background(), &model.Conversation{
		ID:     uuid.Must(uuid.NewV7()).String(),
		UserID: "user-1",
		Status: model.ConversationActive,
	}))

	assert.True(t, n.Pending())
	alert := drainAlert(t, n)
	assert.Equal(t, AlertConversation, alert.Kind)
	assert.True(t, alert.Sound)
}

func TestNotifierSkipsSystemMessages(t *testing.T) {
	bus := newFakeBus()
	n := NewNotifier(newFakeStore(), bus, logger.NewNop())
	defer n.Stop()

	require.NoError(t, n.Start(identity.RoleAdmin))

	convID := uuid.Must(uuid.NewV7()).String()
	require.NoError(t, bus.PublishMessageCreated(context.Background(), &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: convID,
		SenderID:       model.SenderSystem,
		Content:        "Welcome!",
		System:         true,
		CreatedAt:      time.Now(),
	}))
	assert.False(t, n.Pending())

	require.NoError(t, bus.PublishMessageCreated(context.Background(), &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: convID,
		SenderID:       "user-1",
		Content:        "hello?",
		CreatedAt:      time.Now(),
	}))
	assert.True(t, n.Pending())
	alert := drainAlert(t, n)
	assert.Equal(t, AlertMessage, alert.Kind)
}

func TestNotifierCoalescesSound(t *testing.T) {
	bus := newFakeBus()
	n := NewNotifier(newFakeStore(), bus, logger.NewNop())
	defer n.Stop()

	clock := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	require.NoError(t, n.Start(identity.RoleAdmin))

	publish := func() {
		require.NoError(t, bus.PublishIssueCreated(context.Background(), &model.Issue{
			ID:         uuid.Must(uuid.NewV7()).String(),
			CaseNumber: "BT-20260504-042",
			Status:     model.IssueOpen,
			CreatedAt:  clock,
		}))
	}

	publish()
	assert.True(t, drainAlert(t, n).Sound)

	// Inside the window: alert still fires, sound suppressed.
	clock = clock.Add(500 * time.Millisecond)
	publish()
	assert.False(t, drainAlert(t, n).Sound)

	// Past the window the sound comes back.
	clock = clock.Add(soundCoalesceWindow)
	publish()
	assert.True(t, drainAlert(t, n).Sound)
}

func TestNotifierCheckExisting(t *testing.T) {
	store := newFakeStore()
	n := NewNotifier(store, newFakeBus(), logger.NewNop())
	defer n.Stop()

	require.NoError(t, n.CheckExisting(context.Background()))
	assert.False(t, n.Pending())

	store.mu.Lock()
	store.pendingSupport = true
	store.mu.Unlock()

	require.NoError(t, n.CheckExisting(context.Background()))
	assert.True(t, n.Pending())

	// Reconciliation raises the flag without a live alert.
	select {
	case alert := <-n.Alerts():
		t.Fatalf("unexpected alert %v", alert)
	default:
	}
}

func TestNotifierClearPending(t *testing.T) {
	bus := newFakeBus()
	n := NewNotifier(newFakeStore(), bus, logger.NewNop())
	defer n.Stop()

	require.NoError(t, n.Start(identity.RoleAdmin))
	require.NoError(t, bus.PublishConversationCreated(context.Background(), &model.Conversation{
		ID:     uuid.Must(uuid.NewV7()).String(),
		UserID: "user-1",
		Status: model.ConversationActive,
	}))
	require.True(t, n.Pending())

	n.ClearPending()
	assert.False(t, n.Pending())
}

func TestNotifierStopReleasesSubscriptions(t *testing.T) {
	bus := newFakeBus()
	n := NewNotifier(newFakeStore(), bus, logger.NewNop())

	require.NoError(t, n.Start(identity.RoleAdmin))
	require.Equal(t, 3, bus.activeSubs())

	n.Stop()
	assert.Equal(t, 0, bus.activeSubs())
	n.Stop()
	assert.Equal(t, 0, bus.activeSubs())
}
