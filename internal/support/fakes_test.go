package support

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/birdtrack/support-platform/internal/model"
)

// fakeStore is an in-memory Store with per-call failure switches and
// call counters.
type fakeStore struct {
	mu sync.Mutex

	conversations map[string]*model.Conversation
	metas         map[string]*model.ConversationMeta
	messages      []model.Message
	issues        []model.Issue

	pendingSupport bool

	failListMessages bool
	failUpdateStatus bool
	failCreateIssue  bool

	// blockMessage, when set, stalls CreateMessage until released;
	// enteredMessage observes the call reaching the store.
	blockMessage   chan struct{}
	enteredMessage chan struct{}

	createMessageCalls int
	createIssueCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*model.Conversation),
		metas:         make(map[string]*model.ConversationMeta),
	}
}

func (s *fakeStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

func (s *fakeStore) UpdateConversationStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdateStatus {
		return errors.New("store unavailable")
	}
	conv, ok := s.conversations[id]
	if !ok {
		return errors.New("conversation not found")
	}
	conv.Status = status
	return nil
}

func (s *fakeStore) CreateConversationMeta(ctx context.Context, meta *model.ConversationMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *meta
	s.metas[meta.ConversationID] = &m
	return nil
}

func (s *fakeStore) SetConversationAttachments(ctx context.Context, conversationID string, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.metas[conversationID]
	if !ok {
		return errors.New("metadata not found")
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	meta.Attachments = data
	return nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	block := s.blockMessage
	entered := s.enteredMessage
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.createMessageCalls++
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *fakeStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failListMessages {
		return nil, errors.New("store unavailable")
	}
	var out []model.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateIssue(ctx context.Context, issue *model.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateIssue {
		return errors.New("store unavailable")
	}
	s.createIssueCalls++
	s.issues = append(s.issues, *issue)
	return nil
}

func (s *fakeStore) HasPendingSupport(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSupport, nil
}

func (s *fakeStore) meta(conversationID string) *model.ConversationMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metas[conversationID]
}

// fakeBus dispatches events synchronously to active subscribers.
type fakeBus struct {
	mu   sync.Mutex
	subs []*fakeSub
}

type fakeSub struct {
	bus    *fakeBus
	active bool

	// conversationID filters message events; empty matches all.
	conversationID string
	onMessage      func(model.Message)
	onConversation func(model.Conversation)
	onIssue        func(model.Issue)
}

func (s *fakeSub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.active = false
	return nil
}

func newFakeBus() *fakeBus {
	return &fakeBus{}
}

func (b *fakeBus) add(sub *fakeSub) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.active = true
	b.subs = append(b.subs, sub)
	return sub
}

func (b *fakeBus) activeSubs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs {
		if s.active {
			n++
		}
	}
	return n
}

func (b *fakeBus) snapshotSubs() []*fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*fakeSub, len(b.subs))
	copy(out, b.subs)
	return out
}

func (b *fakeBus) PublishConversationCreated(ctx context.Context, conv *model.Conversation) error {
	for _, s := range b.snapshotSubs() {
		if s.active && s.onConversation != nil {
			s.onConversation(*conv)
		}
	}
	return nil
}

func (b *fakeBus) PublishMessageCreated(ctx context.Context, msg *model.Message) error {
	for _, s := range b.snapshotSubs() {
		if !s.active || s.onMessage == nil {
			continue
		}
		if s.conversationID != "" && s.conversationID != msg.ConversationID {
			continue
		}
		s.onMessage(*msg)
	}
	return nil
}

func (b *fakeBus) PublishIssueCreated(ctx context.Context, issue *model.Issue) error {
	for _, s := range b.snapshotSubs() {
		if s.active && s.onIssue != nil {
			s.onIssue(*issue)
		}
	}
	return nil
}

func (b *fakeBus) SubscribeMessages(conversationID string, fn func(model.Message)) (Subscription, error) {
	return b.add(&fakeSub{bus: b, conversationID: conversationID, onMessage: fn}), nil
}

func (b *fakeBus) SubscribeAllMessages(fn func(model.Message)) (Subscription, error) {
	return b.add(&fakeSub{bus: b, onMessage: fn}), nil
}

func (b *fakeBus) SubscribeConversations(fn func(model.Conversation)) (Subscription, error) {
	return b.add(&fakeSub{bus: b, onConversation: fn}), nil
}

func (b *fakeBus) SubscribeIssues(fn func(model.Issue)) (Subscription, error) {
	return b.add(&fakeSub{bus: b, onIssue: fn}), nil
}

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	mu    sync.Mutex
	sends []Mail
	fail  bool
}

func (m *fakeMailer) Send(ctx context.Context, mail Mail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("mail provider unavailable")
	}
	m.sends = append(m.sends, mail)
	return "mail-id", nil
}

func (m *fakeMailer) sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mail, len(m.sends))
	copy(out, m.sends)
	return out
}

// fakeWebhook records posts and returns a configurable outcome.
type fakeWebhook struct {
	mu     sync.Mutex
	calls  int
	status int
	err    error
}

func (w *fakeWebhook) Post(ctx context.Context, body any) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return 0, w.err
	}
	if w.status == 0 {
		return 200, nil
	}
	return w.status, nil
}

func (w *fakeWebhook) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// fakeBlob records uploads keyed by path.
type fakeBlob struct {
	mu      sync.Mutex
	uploads map[string][]byte
	fail    bool
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{uploads: make(map[string][]byte)}
}

func (b *fakeBlob) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return "", errors.New("storage unavailable")
	}
	b.uploads[path] = data
	return path, nil
}

func (b *fakeBlob) PublicURL(path string) string {
	return "https://cdn.example.test/support/" + path
}
