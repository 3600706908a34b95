package support

import (
	"errors"
)

var (
	// ErrMissingFields is returned when a required start-chat field is
	// empty after trimming.
	ErrMissingFields = errors.New("name, email and description are required")

	// ErrEmptyMessage is returned for a message that is empty after
	// trimming.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrEmptyDescription is returned for an issue report with an empty
	// description.
	ErrEmptyDescription = errors.New("description cannot be empty")

	// ErrNotAuthenticated is returned when an operation needs a
	// resolvable contact email and the session has none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoActiveConversation is returned when an operation requires a
	// bound active conversation.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrConversationActive is returned when a session tries to start a
	// chat while one is already bound.
	ErrConversationActive = errors.New("conversation already active")

	// ErrSendInFlight is returned when a send is already in progress for
	// the session. Nothing else prevents duplicate concurrent writes.
	ErrSendInFlight = errors.New("send already in flight")

	// ErrChannelAttached is returned when Attach is called on a channel
	// that is already attached.
	ErrChannelAttached = errors.New("channel already attached")

	// ErrHistoryUnavailable wraps an initial-fetch failure. The live
	// subscription keeps delivering; only the backlog is missing.
	ErrHistoryUnavailable = errors.New("history unavailable")
)
