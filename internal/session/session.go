// Package session provides storage scoped to one client session, such as the
// pointer to the analysis currently on screen.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/cvdesk/internal/localdb"
)

const (
	// CookieName carries the session id for browser clients.
	CookieName = "cvdesk_session"
	// HeaderName carries the session id for non-browser clients.
	HeaderName = "X-Session-ID"
	// CurrentKey holds the createdAt of the record on screen.
	CurrentKey = "currentHistoryId"
	// DefaultTTL is how long an untouched session value stays valid.
	DefaultTTL = 12 * time.Hour
)

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

type ctxKey struct{}

// WithID returns a context carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id stored by WithID.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Scope hands out session-bound pointers over a shared store.
type Scope struct {
	store localdb.SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// NewScope creates a scope. A ttl <= 0 selects DefaultTTL.
func NewScope(store localdb.SessionStore, ttl time.Duration) *Scope {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Scope{store: store, ttl: ttl, now: time.Now}
}

// TTL returns how long session values stay valid.
func (s *Scope) TTL() time.Duration {
	return s.ttl
}

// Pointer returns the current-record pointer of one session.
func (s *Scope) Pointer(sessionID string) *Pointer {
	return &Pointer{scope: s, sessionID: sessionID}
}

// Prune removes expired values and returns how many were dropped.
func (s *Scope) Prune(ctx context.Context) (int64, error) {
	return s.store.PruneSessions(ctx, s.now().Add(-s.ttl))
}

// RunPruner prunes expired values every interval until ctx is done.
func (s *Scope) RunPruner(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				logger.Warn("session prune failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Debug("expired session values pruned", slog.Int64("count", n))
			}
		}
	}
}

// Pointer remembers which history record a session is looking at.
type Pointer struct {
	scope     *Scope
	sessionID string
}

// Get returns the createdAt of the current record.
func (p *Pointer) Get(ctx context.Context) (string, bool, error) {
	if p.sessionID == "" {
		return "", false, nil
	}
	return p.scope.store.GetSessionValue(ctx, p.sessionID, CurrentKey, p.scope.now().Add(-p.scope.ttl))
}

// Set records createdAt as the current record.
func (p *Pointer) Set(ctx context.Context, createdAt string) error {
	if p.sessionID == "" {
		return nil
	}
	return p.scope.store.PutSessionValue(ctx, p.sessionID, CurrentKey, createdAt)
}

// Clear forgets the current record.
func (p *Pointer) Clear(ctx context.Context) error {
	if p.sessionID == "" {
		return nil
	}
	return p.scope.store.DeleteSessionValue(ctx, p.sessionID, CurrentKey)
}
