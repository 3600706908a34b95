package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateSessionKey validates a client-supplied anonymous session key.
func ValidateSessionKey(key string) error {
	if len(key) == 0 {
		return errors.New("session key cannot be empty")
	}
	if len(key) > 64 {
		return errors.New("session key exceeds maximum length")
	}
	if !utf8.ValidString(key) {
		return errors.New("session key must be valid UTF-8")
	}
	return nil
}
