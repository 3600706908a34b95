package support

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
)

type lifecycleEnv struct {
	store  *fakeStore
	bus    *fakeBus
	blob   *fakeBlob
	mailer *fakeMailer
}

func newLifecycleEnv() *lifecycleEnv {
	return &lifecycleEnv{
		store:  newFakeStore(),
		bus:    newFakeBus(),
		blob:   newFakeBlob(),
		mailer: &fakeMailer{},
	}
}

func (e *lifecycleEnv) lifecycle(session identity.Session) *Lifecycle {
	return NewLifecycle(session, e.store, e.bus, e.blob, e.mailer, logger.NewNop())
}

func memberSession() identity.Session {
	return identity.Session{UserID: "user-1", Email: "user@example.test", Role: identity.RoleMember}
}

func validInput() StartChatInput {
	return StartChatInput{
		Name:        "Robin",
		Email:       "robin@example.test",
		Description: "My sightings will not load",
	}
}

func TestStartChatWelcomeFirst(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())

	conv, welcome, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, model.ConversationActive, conv.Status)
	assert.Equal(t, StateActive, lc.State())
	assert.Equal(t, conv.ID, lc.ConversationID())

	// The live view surfaces the welcome message first.
	ch := NewChannel(env.store, env.bus, logger.NewNop())
	require.NoError(t, ch.Attach(context.Background(), conv.ID))
	defer ch.Detach()

	view := ch.Snapshot()
	require.NotEmpty(t, view)
	assert.Equal(t, welcome.ID, view[0].ID)
	assert.True(t, view[0].System)
	assert.Contains(t, view[0].Content, "Robin")
}

func TestStartChatValidation(t *testing.T) {
	tests := []struct {
		name  string
		input StartChatInput
	}{
		{"empty name", StartChatInput{Name: "  ", Email: "a@b.test", Description: "broken"}},
		{"empty email", StartChatInput{Name: "Robin", Email: "", Description: "broken"}},
		{"empty description", StartChatInput{Name: "Robin", Email: "a@b.test", Description: " \t "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newLifecycleEnv()
			lc := env.lifecycle(memberSession())

			_, _, err := lc.StartChat(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrMissingFields)
			assert.Equal(t, StateNone, lc.State())
			assert.Empty(t, env.store.conversations)
		})
	}
}

func TestStartChatPersistsMetadata(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())

	conv, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)

	meta := env.store.meta(conv.ID)
	require.NotNil(t, meta)
	assert.Equal(t, "Robin", meta.Name)
	assert.Equal(t, "robin@example.test", meta.Email)
}

func TestStartChatAdminSkipsMetadata(t *testing.T) {
	env := newLifecycleEnv()
	admin := identity.Session{UserID: "admin-1", Email: "admin@example.test", Role: identity.RoleAdmin}
	lc := env.lifecycle(admin)

	conv, welcome, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)
	assert.Nil(t, env.store.meta(conv.ID))
	assert.NotContains(t, welcome.Content, "Robin")
}

func TestStartChatUploadsAttachments(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())

	in := validInput()
	in.Attachments = []Attachment{
		{Filename: "song.ogg", ContentType: "audio/ogg", Data: []byte("audio")},
		{Filename: "photo.jpg", ContentType: "image/jpeg", Data: []byte("pixels")},
	}

	conv, _, err := lc.StartChat(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, env.blob.uploads, conv.ID+"/song.ogg")
	assert.Contains(t, env.blob.uploads, conv.ID+"/photo.jpg")

	meta := env.store.meta(conv.ID)
	require.NotNil(t, meta)
	var urls []string
	require.NoError(t, json.Unmarshal(meta.Attachments, &urls))
	require.Len(t, urls, 2)
	assert.True(t, strings.HasSuffix(urls[0], conv.ID+"/song.ogg"))
}

func TestStartChatWhileActive(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())

	_, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)

	_, _, err = lc.StartChat(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrConversationActive)
}

func TestStartChatFailureLeavesRowActive(t *testing.T) {
	env := newLifecycleEnv()
	env.blob.fail = true
	lc := env.lifecycle(memberSession())

	in := validInput()
	in.Attachments = []Attachment{{Filename: "photo.jpg", Data: []byte("pixels")}}

	_, _, err := lc.StartChat(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, StateNone, lc.State())

	// The conversation row is not rolled back and stays active.
	require.Len(t, env.store.conversations, 1)
	for _, conv := range env.store.conversations {
		assert.Equal(t, model.ConversationActive, conv.Status)
	}
}

func TestSendMessageRequiresActiveConversation(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())

	_, err := lc.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoActiveConversation)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())
	_, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)

	before := env.store.createMessageCalls
	_, err = lc.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, before, env.store.createMessageCalls)
}

func TestSendMessageInFlightGuard(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())
	_, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	env.store.mu.Lock()
	env.store.blockMessage = gate
	env.store.enteredMessage = entered
	env.store.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		_, err := lc.SendMessage(context.Background(), "first")
		firstDone <- err
	}()

	// Wait for the first send to reach the store.
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first send never reached the store")
	}

	_, err = lc.SendMessage(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	env.store.mu.Lock()
	env.store.blockMessage = nil
	env.store.enteredMessage = nil
	env.store.mu.Unlock()
	close(gate)

	require.NoError(t, <-firstDone)

	// Once the first send lands the guard releases.
	_, err = lc.SendMessage(context.Background(), "third")
	assert.NoError(t, err)
}

func TestEndChatResetsStateOnSummaryFailure(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())
	_, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)

	env.mailer.fail = true

	summarySent, err := lc.EndChat(context.Background())
	require.NoError(t, err)
	assert.False(t, summarySent)
	assert.Equal(t, StateNone, lc.State())
	assert.Empty(t, lc.ConversationID())
}

func TestEndChatSendsSummary(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())
	conv, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)
	_, err = lc.SendMessage(context.Background(), "any update?")
	require.NoError(t, err)

	summarySent, err := lc.EndChat(context.Background())
	require.NoError(t, err)
	assert.True(t, summarySent)

	sends := env.mailer.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "robin@example.test", sends[0].To)
	assert.Contains(t, sends[0].Text, "any update?")

	assert.Equal(t, model.ConversationClosed, env.store.conversations[conv.ID].Status)
}

func TestEndChatCloseFailureStaysActive(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())
	_, _, err := lc.StartChat(context.Background(), validInput())
	require.NoError(t, err)

	env.store.failUpdateStatus = true

	_, err = lc.EndChat(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateActive, lc.State())
	assert.NotEmpty(t, lc.ConversationID())
}

func TestEndChatRequiresActiveConversation(t *testing.T) {
	env := newLifecycleEnv()
	lc := env.lifecycle(memberSession())

	_, err := lc.EndChat(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveConversation)
}
