package collab

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codevoice/backend/internal/metrics"
	"github.com/codevoice/backend/internal/model"
)

// HistoryRecorder persists the operational record of session lifetimes. The
// live code text is never stored. A nil recorder disables history.
type HistoryRecorder interface {
	RecordCreated(ctx context.Context, sessionID string, createdAt time.Time) error
	RecordClosed(ctx context.Context, sessionID string, closedAt time.Time, peakMembers int) error
}

// DefaultGracePeriod is how long an empty session survives before it is
// garbage collected. Rejoining within the window keeps the session alive.
const DefaultGracePeriod = 30 * time.Second

// Registry creates sessions, assigns identifiers, and tracks the live hubs.
// Sessions are destroyed automatically once empty for the grace period;
// clients never issue an explicit destroy.
type Registry struct {
	grace   time.Duration
	history HistoryRecorder
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	hub       *Hub
	createdAt time.Time
	gcTimer   *time.Timer
}

// NewRegistry creates a session registry. A non-positive grace selects
// DefaultGracePeriod; history and m may be nil.
func NewRegistry(grace time.Duration, history HistoryRecorder, m *metrics.Metrics) *Registry {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Registry{
		grace:    grace,
		history:  history,
		metrics:  m,
		sessions: make(map[string]*sessionEntry),
	}
}

// Create allocates a new session with a unique identifier and an empty hub.
// The identifier is usable immediately.
func (r *Registry) Create(ctx context.Context) (model.Session, *Hub) {
	r.mu.Lock()
	id := r.newIDLocked()
	hub := NewHub(id, func() { r.scheduleGC(id) }, r.metrics)
	entry := &sessionEntry{hub: hub, createdAt: hub.CreatedAt()}
	r.sessions[id] = entry
	r.mu.Unlock()

	r.metrics.SessionCreated()
	if r.history != nil {
		if err := r.history.RecordCreated(ctx, id, entry.createdAt); err != nil {
			log.Error().Err(err).Str("module", "collab").Str("session_id", id).Msg("record session created")
		}
	}
	log.Info().Str("module", "collab").Str("session_id", id).Msg("session created")

	return model.Session{ID: id, CreatedAt: entry.createdAt}, hub
}

// Get returns the hub for a live session.
func (r *Registry) Get(id string) (*Hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return entry.hub, nil
}

// Info returns a read-only snapshot of a live session.
func (r *Registry) Info(id string) (model.SessionInfo, error) {
	hub, err := r.Get(id)
	if err != nil {
		return model.SessionInfo{}, err
	}
	return hub.Snapshot(), nil
}

// Remove destroys a session and disconnects any remaining members. It is
// idempotent; removing an unknown identifier is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		if entry.gcTimer != nil {
			entry.gcTimer.Stop()
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	peak := entry.hub.PeakMembers()
	entry.hub.Close()
	r.metrics.SessionDestroyed()
	if r.history != nil {
		if err := r.history.RecordClosed(context.Background(), id, time.Now(), peak); err != nil {
			log.Error().Err(err).Str("module", "collab").Str("session_id", id).Msg("record session closed")
		}
	}
	log.Info().Str("module", "collab").Str("session_id", id).Int("peak_members", peak).Msg("session removed")
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close removes every live session. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Remove(id)
	}
}

// scheduleGC arms the grace-period timer for a session that just went empty.
// The timer re-checks membership when it fires, so a rejoin during the grace
// period keeps the session alive without explicit cancellation.
func (r *Registry) scheduleGC(id string) {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if entry.gcTimer != nil {
		entry.gcTimer.Stop()
	}
	hub := entry.hub
	entry.gcTimer = time.AfterFunc(r.grace, func() {
		if hub.MemberCount() == 0 {
			r.Remove(id)
		}
	})
	r.mu.Unlock()

	log.Debug().Str("module", "collab").Str("session_id", id).Dur("grace", r.grace).Msg("session empty, gc scheduled")
}

// newIDLocked allocates a short identifier unique among live sessions.
func (r *Registry) newIDLocked() string {
	for {
		id := uuid.New().String()[:8]
		if _, exists := r.sessions[id]; !exists {
			return id
		}
	}
}
