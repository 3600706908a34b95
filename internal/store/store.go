// Package store implements the durable relational store on gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
)

// Store wraps the gorm handle for the support tables.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open connects to postgres and migrates the schema.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle (tests pass sqlite) and migrates
// the schema.
func New(db *gorm.DB, log *logger.Logger) (*Store, error) {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.ConversationMeta{},
		&model.Message{},
		&model.Issue{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db, logger: log}, nil
}

// Ping verifies database connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db.WithContext(ctx).DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// CreateConversation inserts a conversation row.
func (s *Store) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// UpdateConversationStatus flips a conversation's status. Plain
// last-writer-wins; no version check.
func (s *Store) UpdateConversationStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("update conversation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateConversationMeta inserts the submitter metadata row.
func (s *Store) CreateConversationMeta(ctx context.Context, meta *model.ConversationMeta) error {
	if err := s.db.WithContext(ctx).Create(meta).Error; err != nil {
		return fmt.Errorf("insert conversation metadata: %w", err)
	}
	return nil
}

// SetConversationAttachments records uploaded attachment URLs on the
// metadata row.
func (s *Store) SetConversationAttachments(ctx context.Context, conversationID string, urls []string) error {
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&model.ConversationMeta{}).
		Where("conversation_id = ?", conversationID).
		Update("attachments", data)
	if res.Error != nil {
		return fmt.Errorf("update attachments: %w", res.Error)
	}
	return nil
}

// CreateMessage appends a message row.
func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in creation order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// CreateIssue inserts an issue row.
func (s *Store) CreateIssue(ctx context.Context, issue *model.Issue) error {
	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// HasPendingSupport reports whether any active conversation or open
// issue exists.
func (s *Store) HasPendingSupport(ctx context.Context) (bool, error) {
	var conversations int64
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("status = ?", model.ConversationActive).
		Count(&conversations).Error
	if err != nil {
		return false, fmt.Errorf("count active conversations: %w", err)
	}
	if conversations > 0 {
		return true, nil
	}

	var issues int64
	err = s.db.WithContext(ctx).Model(&model.Issue{}).
		Where("status = ?", model.IssueOpen).
		Count(&issues).Error
	if err != nil {
		return false, fmt.Errorf("count open issues: %w", err)
	}
	return issues > 0, nil
}

// ListActiveConversations returns active conversations with submitter
// metadata for the admin panel, newest first.
func (s *Store) ListActiveConversations(ctx context.Context) ([]model.ConversationWithMeta, error) {
	var conversations []model.Conversation
	err := s.db.WithContext(ctx).
		Where("status = ?", model.ConversationActive).
		Order("created_at desc").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("list active conversations: %w", err)
	}

	out := make([]model.ConversationWithMeta, 0, len(conversations))
	for _, conv := range conversations {
		entry := model.ConversationWithMeta{Conversation: conv}
		var meta model.ConversationMeta
		err := s.db.WithContext(ctx).
			Where("conversation_id = ?", conv.ID).
			First(&meta).Error
		switch {
		case err == nil:
			entry.Meta = &meta
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Admin-opened threads have no metadata.
		default:
			return nil, fmt.Errorf("load conversation metadata: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// GetUserRole looks up the stored role of an account.
func (s *Store) GetUserRole(ctx context.Context, userID string) (model.UserRole, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UserRoleMember, nil
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	return user.Role, nil
}
