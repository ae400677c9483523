// Package notification keeps the session's log of user-facing notifications.
package notification

import (
	"fmt"
	"sync"
	"time"

	"github.com/securebank/txwatch/internal/currency"
	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/reconciliation"
)

// DefaultLimit is the number of entries kept before read entries start being
// trimmed.
const DefaultLimit = 100

type Option func(*Sink)

// WithLimit caps the log length. Zero disables the cap. Unread entries are
// never trimmed, so the log can exceed the cap while they accumulate.
func WithLimit(n int) Option {
	return func(s *Sink) {
		if n >= 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// Sink is an append-only, most-recent-first notification log. Record is
// called from a single writer; the read methods may be called concurrently.
type Sink struct {
	mu      sync.RWMutex
	entries []domain.Notification
	seq     uint64
	refresh uint64
	limit   int
	now     func() time.Time

	subsMu sync.Mutex
	subs   map[int]chan domain.Notification
	nextID int
}

func NewSink(opts ...Option) *Sink {
	s := &Sink{
		limit: DefaultLimit,
		now:   time.Now,
		subs:  make(map[int]chan domain.Notification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record turns a reconciliation event into an unread notification, puts it
// at the front of the log, raises the refresh token and pushes it to
// subscribers.
func (s *Sink) Record(ev reconciliation.Event) domain.Notification {
	s.mu.Lock()
	s.seq++
	n := domain.Notification{
		ID:            fmt.Sprintf("ntf-%06d", s.seq),
		TransactionID: ev.TransactionID,
		CreatedAt:     s.now(),
	}
	n.Title, n.Message, n.Kind = render(ev)

	s.entries = append(s.entries, domain.Notification{})
	copy(s.entries[1:], s.entries)
	s.entries[0] = n
	s.trim()
	s.refresh++
	s.mu.Unlock()

	s.publish(n)
	return n
}

// trim drops the oldest read entries until the log fits the limit.
func (s *Sink) trim() {
	if s.limit == 0 || len(s.entries) <= s.limit {
		return
	}
	excess := len(s.entries) - s.limit
	for i := len(s.entries) - 1; i >= 0 && excess > 0; i-- {
		if s.entries[i].Read {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			excess--
		}
	}
}

func render(ev reconciliation.Event) (string, string, domain.NotificationKind) {
	amount := currency.FormatUSD(ev.Amount)
	switch ev.Status {
	case domain.StatusApproved:
		return "Transaction approved",
			fmt.Sprintf("Your transfer of %s (%s) was approved after review.", amount, ev.TransactionID),
			domain.KindSuccess
	case domain.StatusRejected:
		return "Transaction rejected",
			fmt.Sprintf("Your transfer of %s (%s) was rejected after review.", amount, ev.TransactionID),
			domain.KindWarning
	default:
		return "Transaction updated",
			fmt.Sprintf("Your transfer of %s (%s) is now %s.", amount, ev.TransactionID, ev.Status),
			domain.KindInfo
	}
}

// MarkRead flags a notification as read. It reports whether anything changed;
// unknown ids and already-read entries are left alone.
func (s *Sink) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}
		if s.entries[i].Read {
			return false
		}
		s.entries[i].Read = true
		return true
	}
	return false
}

// MarkAllRead flags every entry as read and returns how many changed.
func (s *Sink) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.entries {
		if !s.entries[i].Read {
			s.entries[i].Read = true
			changed++
		}
	}
	return changed
}

// Has reports whether id is in the log.
func (s *Sink) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.entries {
		if n.ID == id {
			return true
		}
	}
	return false
}

func (s *Sink) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.entries {
		if !n.Read {
			count++
		}
	}
	return count
}

// List returns a copy of the log, most recent first.
func (s *Sink) List() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, len(s.entries))
	copy(out, s.entries)
	return out
}

// RefreshToken increases by one for every recorded notification. Views
// compare it with the last value they saw to decide whether to reload
// derived state such as the balance.
func (s *Sink) RefreshToken() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}
