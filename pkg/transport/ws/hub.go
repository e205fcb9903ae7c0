// Package ws exposes the coordinator over WebSocket. Each browser frame
// holds one connection; subscription requests flow in as JSON envelopes and
// snapshots flow back out over the same socket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notewire/notewire/pkg/core"
)

const (
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 32
	maxFrameBytes = 1 << 20
)

// Multiplexer is the subscription surface a connected frame drives.
type Multiplexer interface {
	SubscribeNotes(ctx context.Context, key core.NoteKey, urlPattern string, identity core.Identity)
	UnsubscribeNotes(key core.NoteKey)
	SubscribeComments(ctx context.Context, key core.CommentKey, frameID int, identity core.Identity)
	UnsubscribeComments(key core.CommentKey)
	DropFrame(tabID, frameID int)
}

// TokenParser verifies a bearer token and returns the identity it carries.
type TokenParser interface {
	ParseIdentity(token string) (core.Identity, error)
}

// Config holds the configuration for the WebSocket hub.
type Config struct {
	Mux    Multiplexer
	Tokens TokenParser
	Logger *slog.Logger
}

// Hub accepts frame connections and implements core.Transport over them.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	mux    Multiplexer
	frames map[core.NoteKey]*frameConn
}

func NewHub(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		mux:    cfg.Mux,
		frames: make(map[core.NoteKey]*frameConn),
	}
}

// BindMux late-binds the subscription surface. The hub must exist before
// the registry (the registry's transport is the hub), so assembly wires
// the two in this order: NewHub, build registry, BindMux.
func (h *Hub) BindMux(m Multiplexer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mux = m
}

func (h *Hub) multiplexer() Multiplexer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mux
}

// SendToFrame implements core.Transport. An unknown or closed frame returns
// core.ErrFrameGone; a full send queue is also a delivery failure, since a
// frame that cannot drain its queue is as good as gone.
func (h *Hub) SendToFrame(ctx context.Context, tabID, frameID int, msg core.Message) error {
	h.mu.Lock()
	fc, ok := h.frames[core.NoteKey{TabID: tabID, FrameID: frameID}]
	h.mu.Unlock()
	if !ok {
		return core.ErrFrameGone
	}
	return fc.enqueue(msg)
}

// ServeHTTP upgrades a frame connection. The frame identifies itself with
// tab and frame query parameters and authenticates with a bearer token.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.Atoi(r.URL.Query().Get("tab"))
	if err != nil {
		http.Error(w, "missing or invalid tab id", http.StatusBadRequest)
		return
	}
	frameID, err := strconv.Atoi(r.URL.Query().Get("frame"))
	if err != nil {
		http.Error(w, "missing or invalid frame id", http.StatusBadRequest)
		return
	}

	identity, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	key := core.NoteKey{TabID: tabID, FrameID: frameID}
	fc := &frameConn{
		conn: conn,
		send: make(chan core.Message, sendQueueSize),
	}

	h.mu.Lock()
	old := h.frames[key]
	h.frames[key] = fc
	h.mu.Unlock()
	if old != nil {
		old.close()
	}

	h.logger.Info("frame connected", "tab", tabID, "frame", frameID, "identity", identity)

	go fc.writePump()
	h.readLoop(r.Context(), key, identity, fc)

	h.mu.Lock()
	current := h.frames[key] == fc
	if current {
		delete(h.frames, key)
	}
	h.mu.Unlock()
	fc.close()
	// A superseded connection must not tear down its replacement's
	// subscriptions.
	if current {
		if mux := h.multiplexer(); mux != nil {
			mux.DropFrame(tabID, frameID)
		}
	}
	h.logger.Info("frame disconnected", "tab", tabID, "frame", frameID)
}

func (h *Hub) authenticate(r *http.Request) (core.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
	}
	if token == "" {
		return "", errors.New("missing token")
	}
	return h.cfg.Tokens.ParseIdentity(token)
}

func (h *Hub) readLoop(ctx context.Context, key core.NoteKey, identity core.Identity, fc *frameConn) {
	fc.conn.SetReadLimit(maxFrameBytes)
	_ = fc.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	fc.conn.SetPongHandler(func(string) error {
		return fc.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg core.Message
		if err := fc.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("frame read failed", "tab", key.TabID, "frame", key.FrameID, "error", err)
			}
			return
		}
		h.dispatch(ctx, key, identity, fc, msg)
	}
}

func (h *Hub) dispatch(ctx context.Context, key core.NoteKey, identity core.Identity, fc *frameConn, msg core.Message) {
	mux := h.multiplexer()
	if mux == nil {
		_ = fc.enqueue(core.Message{Kind: core.KindError, Error: "coordinator not ready"})
		return
	}
	switch msg.Kind {
	case core.KindSubscribeNotes:
		mux.SubscribeNotes(ctx, key, msg.URL, identity)
	case core.KindUnsubscribeNotes:
		mux.UnsubscribeNotes(key)
	case core.KindSubscribeComments:
		if msg.NoteID == "" {
			_ = fc.enqueue(core.Message{Kind: core.KindError, Error: "comment subscription requires a note id"})
			return
		}
		mux.SubscribeComments(ctx, core.CommentKey{TabID: key.TabID, NoteID: msg.NoteID}, key.FrameID, identity)
	case core.KindUnsubscribeComments:
		mux.UnsubscribeComments(core.CommentKey{TabID: key.TabID, NoteID: msg.NoteID})
	default:
		_ = fc.enqueue(core.Message{Kind: core.KindError, Error: fmt.Sprintf("unknown message kind: %s", msg.Kind)})
	}
}

// frameConn is one frame's socket plus its outbound queue. The write pump
// owns the socket for writes; enqueue never blocks.
type frameConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan core.Message
	closed bool
}

func (f *frameConn) enqueue(msg core.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrFrameGone
	}
	select {
	case f.send <- msg:
		return nil
	default:
		return errors.New("frame send queue full")
	}
}

func (f *frameConn) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.send)
	}
}

func (f *frameConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer f.conn.Close()

	for {
		select {
		case msg, ok := <-f.send:
			if !ok {
				_ = f.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				return
			}
			_ = f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := f.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
