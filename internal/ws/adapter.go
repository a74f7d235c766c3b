package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codevoice/backend/internal/collab"
	"github.com/codevoice/backend/internal/frame"
	"github.com/codevoice/backend/internal/metrics"
	"github.com/codevoice/backend/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum JSON message size allowed from peer. Binary audio messages are
	// bounded separately by the frame decoder's maximum frame size.
	maxMessageSize = 1 << 20
)

// Conn is the subset of *websocket.Conn the adapter needs. Narrowing it keeps
// the lifecycle machinery testable without a network.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// AudioSink consumes decoded audio segments from one connection. Push must
// not block; Close releases the sink once the connection is gone.
type AudioSink interface {
	Push(segment []byte) bool
	Close()
}

// connState is the connection lifecycle. Transitions only move forward:
// Connected -> Closing -> Closed.
type connState int

const (
	stateConnected connState = iota
	stateClosing
	stateClosed
)

// Adapter bridges one websocket connection to a session hub. Text messages
// are decoded once into typed envelopes and dispatched; binary messages are
// audio traffic pushed through the frame decoder.
type Adapter struct {
	conn      Conn
	client    *Client
	hub       *collab.Hub
	userID    string
	decoder   *frame.Decoder
	sink      AudioSink
	metrics   *metrics.Metrics
	readLimit int64

	mu    sync.Mutex
	state connState
}

// Config carries the per-connection knobs an Adapter needs.
type Config struct {
	SendBuffer   int
	MaxFrameSize int
	ReadLimit    int64     // non-positive selects the default
	Sink         AudioSink // optional; nil disables the speech pipeline
	Metrics      *metrics.Metrics
}

// NewAdapter creates an adapter for an accepted connection. The caller still
// owns the join: call Start to register with the hub and begin pumping.
func NewAdapter(conn Conn, hub *collab.Hub, userID string, cfg Config) *Adapter {
	readLimit := cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = maxMessageSize
	}
	return &Adapter{
		conn:      conn,
		client:    NewClient(cfg.SendBuffer),
		hub:       hub,
		userID:    userID,
		decoder:   frame.NewDecoder(cfg.MaxFrameSize),
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
		readLimit: readLimit,
	}
}

// Client exposes the outbound send path, for wiring a pipeline that replies
// to this connection.
func (a *Adapter) Client() *Client {
	return a.client
}

// AttachSink sets the audio sink. Must be called before Start.
func (a *Adapter) AttachSink(sink AudioSink) {
	a.sink = sink
}

// Start joins the hub and launches the read and write pumps. The hub queues
// the initial synchronization message to the client while it registers the
// member, so it is always first on the wire.
func (a *Adapter) Start() error {
	if _, err := a.hub.Join(a.userID, a.client); err != nil {
		a.shutdown()
		return err
	}

	go a.writePump()
	go a.readPump()
	return nil
}

// Close tears the connection down. Safe to call from any goroutine and any
// number of times; the member leaves its hub exactly once.
func (a *Adapter) Close() {
	a.shutdown()
}

// shutdown performs the Connected -> Closing -> Closed transition. The
// idempotency guard lives on the first step: late error callbacks after an
// already-processed close find state != Connected and return.
func (a *Adapter) shutdown() {
	a.mu.Lock()
	if a.state != stateConnected {
		a.mu.Unlock()
		return
	}
	a.state = stateClosing
	a.mu.Unlock()

	// Identity-aware: if a rejoin already replaced this connection, the hub
	// keeps the new registration and this is a no-op.
	a.hub.Detach(a.userID, a.client)
	if a.sink != nil {
		a.sink.Close()
	}
	a.client.Close()
	_ = a.conn.Close()

	a.mu.Lock()
	a.state = stateClosed
	a.mu.Unlock()
}

// readPump pumps inbound messages from the connection into the hub. Any read
// error, including an abrupt peer close, funnels into the shutdown path.
func (a *Adapter) readPump() {
	defer a.shutdown()

	a.conn.SetReadLimit(a.readLimit)
	_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		return a.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("module", "ws").Str("user_id", a.userID).Msg("read error")
			}
			return
		}

		switch kind {
		case websocket.TextMessage:
			a.handleText(data)
		case websocket.BinaryMessage:
			if !a.handleBinary(data) {
				return
			}
		}
	}
}

// handleText decodes the envelope once and dispatches by type. Presence
// messages are hub-internal and never accepted from a client.
func (a *Adapter) handleText(data []byte) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("user_id", a.userID).Msg("bad json envelope")
		a.sendError("bad_payload")
		return
	}

	switch msg.Type {
	case model.MessageTypeCodeUpdate:
		code := ""
		if msg.Code != nil {
			code = *msg.Code
		}
		if err := a.hub.UpdateCode(a.userID, code, msg.Language); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("user_id", a.userID).Msg("code update rejected")
		}
	case model.MessageTypeVoiceCommand:
		if err := a.hub.RelayVoiceCommand(a.userID, msg.Command); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("user_id", a.userID).Msg("voice command rejected")
		}
	case model.MessageTypeCursorUpdate:
		if err := a.hub.RelayCursor(a.userID, msg.Position); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("user_id", a.userID).Msg("cursor update rejected")
		}
	default:
		log.Warn().Str("module", "ws").Str("type", string(msg.Type)).Msg("unknown message type")
		a.sendError("unknown_type")
	}
}

// handleBinary feeds a delivery through the frame decoder. A framing error
// closes the connection; it is not fatal to the hub or the session. Returns
// false when the read loop should stop.
func (a *Adapter) handleBinary(data []byte) bool {
	segments, err := a.decoder.Decode(data)
	for _, segment := range segments {
		a.metrics.FrameDecoded()
		if relayErr := a.hub.RelayAudio(a.userID, segment); relayErr != nil {
			log.Warn().Err(relayErr).Str("module", "ws").Str("user_id", a.userID).Msg("audio relay rejected")
		}
		if a.sink != nil {
			if !a.sink.Push(segment) {
				log.Warn().Str("module", "ws").Str("user_id", a.userID).Msg("speech pipeline backlogged, segment dropped")
			}
		}
	}
	if err != nil {
		a.metrics.FramingError()
		log.Warn().Err(err).Str("module", "ws").Str("user_id", a.userID).Msg("framing error, closing connection")
		return false
	}
	return true
}

func (a *Adapter) sendError(code string) {
	data, err := json.Marshal(&model.Message{Type: model.MessageTypeError, Error: code})
	if err != nil {
		return
	}
	a.client.SendText(data)
}

// writePump drains the client queue onto the wire and keeps the connection
// alive with pings.
func (a *Adapter) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		a.shutdown()
	}()

	for {
		select {
		case msg, ok := <-a.client.outbound():
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = a.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := a.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
