package collab

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codevoice/backend/internal/frame"
	"github.com/codevoice/backend/internal/metrics"
	"github.com/codevoice/backend/internal/model"
)

// Sender is the outbound half of a member's connection. Implementations must
// not block: both methods enqueue onto a bounded per-member queue and report
// false when the queue is full or the connection is gone. A false return
// tells the hub to drop the member rather than stall everyone else.
type Sender interface {
	SendText(data []byte) bool
	SendBinary(data []byte) bool
	Close()
}

// Hub is the single serialization point for one session. It owns the
// session's code/language state and the member list; connection adapters
// funnel every mutation through it, so concurrent edits never interleave
// into corrupted state. Code updates are last-writer-wins.
type Hub struct {
	sessionID string
	createdAt time.Time

	mu       sync.Mutex
	code     string
	language string
	presence presence
	peak     int
	closed   bool

	// onEmpty is invoked (outside the lock) after the last member leaves.
	onEmpty func()

	metrics *metrics.Metrics
}

const defaultLanguage = "python"

// NewHub creates a hub for the given session. onEmpty may be nil; metrics may
// be nil.
func NewHub(sessionID string, onEmpty func(), m *metrics.Metrics) *Hub {
	return &Hub{
		sessionID: sessionID,
		createdAt: time.Now(),
		language:  defaultLanguage,
		onEmpty:   onEmpty,
		metrics:   m,
	}
}

// SessionID returns the session this hub serves.
func (h *Hub) SessionID() string {
	return h.sessionID
}

// CreatedAt returns the session creation timestamp.
func (h *Hub) CreatedAt() time.Time {
	return h.createdAt
}

// Join registers the member and returns the current session state so the new
// member starts synchronized. Every other member receives a user_joined
// event. Joining again with the same user ID replaces the old connection
// without a presence change.
func (h *Hub) Join(userID string, sender Sender) (model.MemberView, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return model.MemberView{}, model.ErrSessionClosed
	}

	var old Sender
	m, rejoin := h.presence.get(userID)
	if rejoin {
		old = m.sender
		m.sender = sender
	} else {
		m = &member{userID: userID, joinedAt: time.Now(), sender: sender}
		h.presence.add(m)
		if h.presence.count() > h.peak {
			h.peak = h.presence.count()
		}

		code := h.code
		h.broadcastLocked(&model.Message{
			Type:   model.MessageTypeUserJoined,
			UserID: userID,
			Users:  h.presence.users(),
			Code:   &code,
		}, userID)
	}

	// The snapshot is enqueued while the lock is held, so any broadcast the
	// hub accepts afterwards lands behind it on the joiner's queue.
	h.syncLocked(m)

	view := h.viewLocked(m)
	empty := h.drainClosedLocked()
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if !rejoin {
		h.metrics.MemberJoined()
	}
	if empty {
		h.notifyEmpty()
	}
	return view, nil
}

// syncLocked enqueues the current session state to a member so it starts (or
// resumes) synchronized.
func (h *Hub) syncLocked(m *member) {
	code := h.code
	data, err := json.Marshal(&model.Message{
		Type:     model.MessageTypeUserJoined,
		UserID:   m.userID,
		Users:    h.presence.users(),
		Code:     &code,
		Language: h.language,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "collab").Str("session_id", h.sessionID).Msg("marshal sync")
		return
	}
	if !m.sender.SendText(data) {
		h.markSlowLocked(m)
	}
}

// Leave removes the member and broadcasts user_left to the remaining
// members. It is idempotent: duplicate disconnect signals for the same
// member produce at most one broadcast. The return value reports whether the
// member was actually removed.
func (h *Hub) Leave(userID string) bool {
	return h.drop(userID, nil)
}

// Detach removes the member only while sender is still its registered
// connection. A replaced connection's late cleanup finds a newer sender and
// must leave the fresh registration alone.
func (h *Hub) Detach(userID string, sender Sender) bool {
	return h.drop(userID, sender)
}

// drop removes userID and broadcasts user_left. A non-nil expect restricts
// the removal to the connection that registered it.
func (h *Hub) drop(userID string, expect Sender) bool {
	h.mu.Lock()
	m, ok := h.presence.get(userID)
	if !ok || (expect != nil && m.sender != expect) {
		h.mu.Unlock()
		return false
	}
	h.presence.remove(userID)
	sender := m.sender

	h.broadcastLocked(&model.Message{
		Type:   model.MessageTypeUserLeft,
		UserID: userID,
		Users:  h.presence.users(),
	}, "")
	empty := h.drainClosedLocked()
	h.mu.Unlock()

	if sender != nil {
		sender.Close()
	}
	h.metrics.MemberLeft()
	if empty {
		h.notifyEmpty()
	}
	return true
}

// UpdateCode applies last-writer-wins semantics: the update replaces the
// session's current code and language regardless of author, and is broadcast
// to every member except the originator.
func (h *Hub) UpdateCode(userID, code, language string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return model.ErrSessionClosed
	}
	if _, ok := h.presence.get(userID); !ok {
		h.mu.Unlock()
		return model.ErrMemberNotFound
	}

	h.code = code
	if language != "" {
		h.language = language
	}

	body := code
	h.broadcastLocked(&model.Message{
		Type:     model.MessageTypeCodeUpdate,
		UserID:   userID,
		Code:     &body,
		Language: h.language,
	}, userID)
	empty := h.drainClosedLocked()
	h.mu.Unlock()

	if empty {
		h.notifyEmpty()
	}
	return nil
}

// RelayVoiceCommand forwards an opaque command payload to all other members.
// The hub does not interpret it and no state changes.
func (h *Hub) RelayVoiceCommand(userID, command string) error {
	return h.relay(userID, &model.Message{
		Type:    model.MessageTypeVoiceCommand,
		UserID:  userID,
		Command: command,
	})
}

// RelayCursor forwards a cursor position to all other members verbatim.
func (h *Hub) RelayCursor(userID string, position json.RawMessage) error {
	return h.relay(userID, &model.Message{
		Type:     model.MessageTypeCursorUpdate,
		UserID:   userID,
		Position: position,
	})
}

func (h *Hub) relay(userID string, msg *model.Message) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return model.ErrSessionClosed
	}
	if _, ok := h.presence.get(userID); !ok {
		h.mu.Unlock()
		return model.ErrMemberNotFound
	}
	h.broadcastLocked(msg, userID)
	empty := h.drainClosedLocked()
	h.mu.Unlock()

	if empty {
		h.notifyEmpty()
	}
	return nil
}

// RelayAudio re-frames an audio payload and fans it out to every member
// except the originator on the binary path.
func (h *Hub) RelayAudio(userID string, payload []byte) error {
	encoded := frame.Encode(payload)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return model.ErrSessionClosed
	}
	if _, ok := h.presence.get(userID); !ok {
		h.mu.Unlock()
		return model.ErrMemberNotFound
	}
	for _, m := range h.presence.members {
		if m.userID == userID || m.sender == nil {
			continue
		}
		if !m.sender.SendBinary(encoded) {
			h.markSlowLocked(m)
		}
	}
	empty := h.drainClosedLocked()
	h.mu.Unlock()

	if empty {
		h.notifyEmpty()
	}
	return nil
}

// Snapshot returns a consistent read of the session's visible state.
func (h *Hub) Snapshot() model.SessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return model.SessionInfo{
		SessionID: h.sessionID,
		Users:     h.presence.users(),
		Code:      h.code,
		Language:  h.language,
		CreatedAt: h.createdAt,
	}
}

// Members returns the current member list with assigned colors.
func (h *Hub) Members() []model.Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Member, len(h.presence.members))
	for i, m := range h.presence.members {
		out[i] = model.Member{UserID: m.userID, Color: m.color, JoinedAt: m.joinedAt}
	}
	return out
}

// MemberCount returns the number of connected members.
func (h *Hub) MemberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.count()
}

// PeakMembers returns the largest membership the session has seen.
func (h *Hub) PeakMembers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peak
}

// Close disconnects all members and marks the hub dead. Further operations
// return ErrSessionClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	senders := make([]Sender, 0, h.presence.count())
	for _, m := range h.presence.members {
		if m.sender != nil {
			senders = append(senders, m.sender)
		}
	}
	h.presence.members = nil
	h.mu.Unlock()

	for _, s := range senders {
		s.Close()
	}
}

func (h *Hub) viewLocked(m *member) model.MemberView {
	return model.MemberView{
		Users:    h.presence.users(),
		Code:     h.code,
		Language: h.language,
		Color:    m.color,
	}
}

// broadcastLocked marshals once and enqueues to every member except exclude.
// Members whose queue is full are marked slow; callers must run
// drainClosedLocked before releasing the lock.
func (h *Hub) broadcastLocked(msg *model.Message, exclude string) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "collab").Str("session_id", h.sessionID).Msg("marshal broadcast")
		return
	}

	for _, m := range h.presence.members {
		if m.userID == exclude || m.sender == nil {
			continue
		}
		if !m.sender.SendText(data) {
			h.markSlowLocked(m)
		}
	}
	h.metrics.MessageBroadcast()
}

// slow members are detached from the send path immediately and fully removed
// by drainClosedLocked, so one backpressured connection cannot stall the hub.
func (h *Hub) markSlowLocked(m *member) {
	if m.sender == nil {
		return
	}
	m.sender.Close()
	m.sender = nil
	h.metrics.SlowMemberDropped()
	log.Warn().Str("module", "collab").Str("session_id", h.sessionID).Str("user_id", m.userID).
		Msg("member dropped: send queue full")
}

// drainClosedLocked removes members whose sender was detached during a
// broadcast, emitting user_left for each. Removal can detach further slow
// members, so it loops until the membership is stable. Reports whether the
// hub ended up empty.
func (h *Hub) drainClosedLocked() bool {
	for {
		var gone *member
		for _, m := range h.presence.members {
			if m.sender == nil {
				gone = m
				break
			}
		}
		if gone == nil {
			break
		}
		h.presence.remove(gone.userID)
		h.broadcastLocked(&model.Message{
			Type:   model.MessageTypeUserLeft,
			UserID: gone.userID,
			Users:  h.presence.users(),
		}, "")
		h.metrics.MemberLeft()
	}
	return h.presence.count() == 0 && !h.closed
}

func (h *Hub) notifyEmpty() {
	if h.onEmpty != nil {
		h.onEmpty()
	}
}
