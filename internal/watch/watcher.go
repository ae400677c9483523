// Package watch ties the scheduler, the fraud API and the notification log
// to the lifecycle of a signed-in user.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/notification"
	"github.com/securebank/txwatch/internal/scheduler"
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrInvalidUserID = errors.New("user id is required")
	ErrUserMismatch  = errors.New("user does not match the active session")
)

// Submitter sends a new transfer for scoring.
type Submitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Verdict, error)
}

// Watcher owns at most one Session at a time.
type Watcher struct {
	fetcher   Fetcher
	submitter Submitter
	sched     *scheduler.Scheduler
	sinkOpts  []notification.Option
	log       zerolog.Logger

	mu      sync.Mutex
	session *Session
}

func NewWatcher(
	fetcher Fetcher,
	submitter Submitter,
	sched *scheduler.Scheduler,
	log zerolog.Logger,
	sinkOpts ...notification.Option,
) *Watcher {
	return &Watcher{
		fetcher:   fetcher,
		submitter: submitter,
		sched:     sched,
		sinkOpts:  sinkOpts,
		log:       log,
	}
}

// Login starts polling for userID. Logging in again as the current user
// keeps the existing session; any other user replaces it with a fresh one.
func (w *Watcher) Login(userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session != nil {
		if w.session.UserID() == userID {
			return w.session, nil
		}
		w.endLocked()
	}

	s := NewSession(userID, w.fetcher, notification.NewSink(w.sinkOpts...), w.log)
	w.session = s
	w.sched.Start(userID, s)
	return s, nil
}

// Logout stops polling and discards the session state. It is a no-op when
// nobody is signed in.
func (w *Watcher) Logout() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.endLocked()
}

func (w *Watcher) endLocked() {
	if w.session == nil {
		return
	}
	w.sched.Stop()
	w.session.close()
	w.log.Info().Str("user_id", w.session.UserID()).Msg("session ended")
	w.session = nil
}

// Session returns the active session.
func (w *Watcher) Session() (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil, ErrNoSession
	}
	return w.session, nil
}

// InFlight reports whether a fetch for the active session is outstanding.
func (w *Watcher) InFlight() bool {
	return w.sched.InFlight()
}

// Submit sends a transfer for the signed-in user. The verdict's status only
// reflects the automated scorer; analyst decisions arrive later through
// polling.
func (w *Watcher) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Verdict, error) {
	s, err := w.Session()
	if err != nil {
		return nil, err
	}
	if req.UserID == "" {
		req.UserID = s.UserID()
	}
	if req.UserID != s.UserID() {
		return nil, fmt.Errorf("submit for %s: %w", req.UserID, ErrUserMismatch)
	}

	v, err := w.submitter.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	w.log.Info().
		Str("user_id", req.UserID).
		Str("transaction_id", v.TransactionID).
		Str("status", string(v.Status)).
		Int("risk_score", v.RiskScore).
		Msg("transaction scored")
	return v, nil
}
