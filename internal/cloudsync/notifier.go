package cloudsync

import (
	"sync"
	"time"

	"nflpicks/tracker/internal/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Level grades a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a non-blocking message for the user.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// DefaultFeedSize bounds the notification feed.
const DefaultFeedSize = 50

// Notifier logs notifications and keeps the most recent ones.
type Notifier struct {
	mu   sync.Mutex
	feed []Notification
	max  int
	now  func() time.Time
}

// NewNotifier creates a notifier keeping at most max entries.
func NewNotifier(max int) *Notifier {
	if max <= 0 {
		max = DefaultFeedSize
	}
	return &Notifier{max: max, now: time.Now}
}

// Info records an informational notification.
func (n *Notifier) Info(op, msg string) {
	log.Info().Str("op", op).Msg(msg)
	n.push(LevelInfo, op, msg)
}

// Warn records a warning.
func (n *Notifier) Warn(op, msg string) {
	log.Warn().Str("op", op).Msg(msg)
	n.push(LevelWarning, op, msg)
}

// Error converts err into a user-facing notification.
func (n *Notifier) Error(op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Cloud sync operation failed")
	n.push(LevelError, op, describe(err))
}

// Recent returns notifications, newest first.
func (n *Notifier) Recent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.feed))
	for i, item := range n.feed {
		out[len(n.feed)-1-i] = item
	}
	return out
}

func (n *Notifier) push(level Level, op, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feed = append(n.feed, Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Op:      op,
		Message: msg,
		Time:    n.now().UTC(),
	})
	if over := len(n.feed) - n.max; over > 0 {
		n.feed = append([]Notification(nil), n.feed[over:]...)
	}
}

func describe(err error) string {
	switch {
	case apperr.IsTimeout(err):
		return "Cloud sync timed out. Your predictions are still saved locally."
	case apperr.IsConfiguration(err):
		return "Cloud sync configuration was rejected: " + err.Error()
	case apperr.IsDataFormat(err):
		return "Cloud backup could not be read: " + err.Error()
	}
	if _, ok := apperr.AsNetworkError(err); ok {
		return "Cloud sync failed. Your predictions are still saved locally."
	}
	return "Cloud sync failed: " + err.Error()
}
