package watch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/notification"
	"github.com/securebank/txwatch/internal/reconciliation"
)

// Fetcher retrieves the authoritative transaction list for a user.
type Fetcher interface {
	FetchTransactions(ctx context.Context, userID string) ([]domain.TransactionSnapshot, error)
}

// Session is the polling state of one signed-in user: the ids already
// notified and the notification log. A new user always gets a new Session.
type Session struct {
	userID  string
	fetcher Fetcher
	sink    *notification.Sink
	log     zerolog.Logger

	mu   sync.RWMutex
	seen reconciliation.SeenSet
}

func NewSession(userID string, fetcher Fetcher, sink *notification.Sink, log zerolog.Logger) *Session {
	return &Session{
		userID:  userID,
		fetcher: fetcher,
		sink:    sink,
		log:     log.With().Str("user_id", userID).Logger(),
		seen:    reconciliation.NewSeenSet(),
	}
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) Notifications() *notification.Sink { return s.sink }

// Seen returns the current seen-set.
func (s *Session) Seen() reconciliation.SeenSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen
}

func (s *Session) Fetch(ctx context.Context) ([]domain.TransactionSnapshot, error) {
	return s.fetcher.FetchTransactions(ctx, s.userID)
}

// Apply reconciles one fetched batch and records the resulting
// notifications in snapshot order.
func (s *Session) Apply(snapshots []domain.TransactionSnapshot) {
	res := reconciliation.Reconcile(snapshots, s.Seen())

	for _, de := range res.Skipped {
		s.log.Warn().Err(de).Int("index", de.Index).Msg("skipping malformed snapshot")
	}
	for _, ev := range res.Events {
		n := s.sink.Record(ev)
		s.log.Info().
			Str("transaction_id", ev.TransactionID).
			Str("status", string(ev.Status)).
			Str("notification_id", n.ID).
			Msg("transaction review observed")
	}

	s.mu.Lock()
	s.seen = res.Seen
	s.mu.Unlock()
}

// close detaches UI listeners once the session has been stopped.
func (s *Session) close() {
	s.sink.Close()
}
