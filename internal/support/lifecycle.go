package support

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
	"github.com/birdtrack/support-platform/pkg/metrics"
)

// State is the lifecycle state of one session's support conversation.
type State int

const (
	StateNone State = iota
	StateCreating
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "none"
	}
}

// Attachment is one file uploaded alongside a start-chat request.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StartChatInput carries the submitter details for a new conversation.
type StartChatInput struct {
	Name        string
	Email       string
	Description string
	Attachments []Attachment
}

// Lifecycle owns one session's conversation state machine:
// none -> creating -> active -> closing -> none. A failed create falls
// back to none (the conversation row, if already written, stays active
// in the store and is not rolled back). A failed close stays active.
type Lifecycle struct {
	session identity.Session
	store   Store
	bus     Bus
	blob    Blob
	mailer  Mailer
	logger  *logger.Logger

	mu             sync.Mutex
	state          State
	conversationID string
	contactEmail   string

	sending atomic.Bool
}

// NewLifecycle creates the state machine for one session.
func NewLifecycle(session identity.Session, store Store, bus Bus, blob Blob, mailer Mailer, log *logger.Logger) *Lifecycle {
	return &Lifecycle{
		session: session,
		store:   store,
		bus:     bus,
		blob:    blob,
		mailer:  mailer,
		logger:  log,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ConversationID returns the bound conversation id, empty when none.
func (l *Lifecycle) ConversationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationID
}

// StartChat opens a conversation, persists submitter metadata for
// non-admin actors, uploads attachments, and appends the system welcome
// message. On success the conversation id is bound to the session so
// SendMessage targets it.
func (l *Lifecycle) StartChat(ctx context.Context, in StartChatInput) (*model.Conversation, *model.Message, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	description := strings.TrimSpace(in.Description)
	if name == "" || email == "" || description == "" {
		return nil, nil, ErrMissingFields
	}

	l.mu.Lock()
	if l.state != StateNone {
		l.mu.Unlock()
		return nil, nil, ErrConversationActive
	}
	l.state = StateCreating
	l.mu.Unlock()

	conv, welcome, err := l.create(ctx, name, email, description, in.Attachments)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state = StateNone
		return nil, nil, err
	}
	l.state = StateActive
	l.conversationID = conv.ID
	l.contactEmail = email
	return conv, welcome, nil
}

func (l *Lifecycle) create(ctx context.Context, name, email, description string, attachments []Attachment) (*model.Conversation, *model.Message, error) {
	now := time.Now()
	isAdmin := l.session.Role.IsAdmin()

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    l.session.ActorID(),
		Status:    model.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	l.publishConversation(ctx, conv)
	metrics.ConversationsTotal.Inc()

	if !isAdmin {
		meta := &model.ConversationMeta{
			ConversationID: conv.ID,
			Name:           name,
			Email:          email,
			Description:    description,
			CreatedAt:      now,
		}
		if err := l.store.CreateConversationMeta(ctx, meta); err != nil {
			return nil, nil, fmt.Errorf("failed to persist conversation metadata: %w", err)
		}
	}

	if len(attachments) > 0 {
		urls, err := l.uploadAttachments(ctx, conv.ID, attachments)
		if err != nil {
			return nil, nil, err
		}
		if !isAdmin {
			if err := l.store.SetConversationAttachments(ctx, conv.ID, urls); err != nil {
				return nil, nil, fmt.Errorf("failed to record attachments: %w", err)
			}
		}
	}

	welcome := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		SenderID:       model.SenderSystem,
		Content:        welcomeText(name, isAdmin),
		System:         true,
		CreatedAt:      time.Now(),
	}
	if err := l.store.CreateMessage(ctx, welcome); err != nil {
		return nil, nil, fmt.Errorf("failed to append welcome message: %w", err)
	}
	l.publishMessage(ctx, welcome)

	l.logger.Info("conversation started",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", conv.UserID),
		zap.Bool("admin", isAdmin),
		zap.Int("attachments", len(attachments)),
	)
	return conv, welcome, nil
}

func (l *Lifecycle) uploadAttachments(ctx context.Context, conversationID string, attachments []Attachment) ([]string, error) {
	urls := make([]string, 0, len(attachments))
	for _, a := range attachments {
		path := fmt.Sprintf("%s/%s", conversationID, a.Filename)
		if _, err := l.blob.Upload(ctx, path, a.Data, a.ContentType); err != nil {
			return nil, fmt.Errorf("failed to upload attachment %s: %w", a.Filename, err)
		}
		urls = append(urls, l.blob.PublicURL(path))
	}
	return urls, nil
}

func welcomeText(name string, admin bool) string {
	if admin {
		return "Support thread opened by an administrator. Replies here are visible to the support team only."
	}
	return fmt.Sprintf("Welcome %s! Thanks for reaching out. A member of our support team will be with you shortly.", name)
}

// SendMessage appends a non-system message to the bound conversation.
// There is no local echo; viewers receive the row through their own
// channel subscription. A send already in flight rejects a second
// concurrent send from the same session.
func (l *Lifecycle) SendMessage(ctx context.Context, text string) (*model.Message, error) {
	if !l.sending.CompareAndSwap(false, true) {
		return nil, ErrSendInFlight
	}
	defer l.sending.Store(false)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	l.mu.Lock()
	if l.state != StateActive {
		l.mu.Unlock()
		return nil, ErrNoActiveConversation
	}
	conversationID := l.conversationID
	l.mu.Unlock()

	sender := l.session.ActorID()
	if l.session.Role.IsAdmin() {
		sender = model.SenderAdmin
	}

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       sender,
		Content:        text,
		CreatedAt:      time.Now(),
	}
	if err := l.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	l.publishMessage(ctx, msg)
	metrics.MessagesTotal.WithLabelValues(senderKind(msg)).Inc()

	return msg, nil
}

// EndChat closes the bound conversation. When a contact email is known
// the conversation summary mail is attempted; its failure is logged and
// reported through the returned flag but never blocks the state reset.
// A failed close leaves the conversation active.
func (l *Lifecycle) EndChat(ctx context.Context) (summarySent bool, err error) {
	l.mu.Lock()
	if l.state != StateActive {
		l.mu.Unlock()
		return false, ErrNoActiveConversation
	}
	l.state = StateClosing
	conversationID := l.conversationID
	email := l.contactEmail
	l.mu.Unlock()

	if err := l.store.UpdateConversationStatus(ctx, conversationID, model.ConversationClosed); err != nil {
		l.mu.Lock()
		l.state = StateActive
		l.mu.Unlock()
		return false, fmt.Errorf("failed to close conversation: %w", err)
	}

	if email != "" {
		summarySent = l.sendSummary(ctx, conversationID, email)
	}

	l.mu.Lock()
	l.state = StateNone
	l.conversationID = ""
	l.contactEmail = ""
	l.mu.Unlock()

	l.logger.Info("conversation closed",
		zap.String("conversation_id", conversationID),
		zap.Bool("summary_sent", summarySent),
	)
	return summarySent, nil
}

func (l *Lifecycle) sendSummary(ctx context.Context, conversationID, email string) bool {
	messages, err := l.store.ListMessages(ctx, conversationID)
	if err != nil {
		l.logger.Warn("summary skipped, history fetch failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return false
	}

	var b strings.Builder
	b.WriteString("Here is a copy of your support conversation:\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.SenderID, m.Content)
	}

	if _, err := l.mailer.Send(ctx, Mail{
		To:      email,
		Subject: "Your support conversation summary",
		Text:    b.String(),
	}); err != nil {
		metrics.MailSendsTotal.WithLabelValues("failure").Inc()
		l.logger.Warn("summary mail failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return false
	}
	metrics.MailSendsTotal.WithLabelValues("success").Inc()
	return true
}

// Publish failures are logged, not surfaced: the change stream is
// fire-and-forget from the writer's point of view and viewers recover
// the row on their next full fetch.
func (l *Lifecycle) publishConversation(ctx context.Context, conv *model.Conversation) {
	if err := l.bus.PublishConversationCreated(ctx, conv); err != nil {
		l.logger.Warn("conversation event publish failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
}

func (l *Lifecycle) publishMessage(ctx context.Context, msg *model.Message) {
	if err := l.bus.PublishMessageCreated(ctx, msg); err != nil {
		l.logger.Warn("message event publish failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func senderKind(msg *model.Message) string {
	switch {
	case msg.System:
		return "system"
	case msg.SenderID == model.SenderAdmin:
		return "admin"
	default:
		return "user"
	}
}
