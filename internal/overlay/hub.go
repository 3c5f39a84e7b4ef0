// Package overlay serves the on-screen UI over WebSocket: live transcript
// lines, the question being answered, streamed answer deltas, and fatal
// pipeline notices. Clients send back pause/resume/stop control signals.
//
// The hub never blocks the pipeline: broadcasts are fan-out writes into
// per-client buffers, and a client that cannot keep up is disconnected
// rather than allowed to stall the others.
package overlay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/auricle-ai/auricle/internal/dispatch"
	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/pkg/types"
)

// Control is a client-issued pipeline control signal.
type Control string

const (
	ControlPause  Control = "pause"
	ControlResume Control = "resume"
	ControlStop   Control = "stop"
)

// frame is the wire format for every hub-to-client message.
type frame struct {
	Type       string    `json:"type"`
	Speaker    string    `json:"speaker,omitempty"`
	Text       string    `json:"text,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// controlMessage is the wire format for client-to-hub messages.
type controlMessage struct {
	Type string `json:"type"`
}

// Per-client write buffer. A client further behind than this is dropped.
const clientSendBuffer = 32

// writeTimeout bounds a single frame write to one client.
const writeTimeout = 5 * time.Second

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	code   websocket.StatusCode
	reason string
}

// close marks the client for disconnection. The write loop drains whatever
// is still buffered and then closes the socket with the recorded code, so a
// final frame (a fatal notice, the tail of an answer) is not cut off.
func (c *client) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		c.code, c.reason = code, reason
		close(c.send)
	})
}

// Hub fans transcript and answer frames out to all connected overlay clients.
// All methods are safe for concurrent use; every broadcast after Close is a
// no-op.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	controls chan Control
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// Compile-time interface check: the hub is the dispatcher's UI sink.
var _ dispatch.Sink = (*Hub)(nil)

// Option is a functional option for Hub.
type Option func(*Hub)

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a Hub with no clients.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:  make(map[*client]struct{}),
		controls: make(chan Control, 8),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Controls returns the channel of client-issued control signals.
func (h *Hub) Controls() <-chan Control {
	return h.controls
}

// ServeHTTP upgrades the request to a WebSocket and serves the client until
// it disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The overlay is a local companion window; cross-origin pages on
		// the same machine are fine.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("overlay accept failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.OverlayClients.Add(r.Context(), 1)
	h.logger.Info("overlay client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)

	h.remove(c, websocket.StatusNormalClosure, "bye")
	h.metrics.OverlayClients.Add(context.Background(), -1)
	h.logger.Info("overlay client disconnected", "remote", r.RemoteAddr)
}

// writeLoop drains the client's send buffer onto the socket and closes the
// socket once the buffer is closed and empty.
func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			h.remove(c, websocket.StatusAbnormalClosure, "write failed")
			c.conn.Close(websocket.StatusAbnormalClosure, "write failed")
			return
		}
	}
	c.conn.Close(c.code, c.reason)
}

// readLoop consumes control messages from the client until the connection
// drops. Unknown message types are ignored.
func (h *Hub) readLoop(c *client) {
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("malformed overlay control", "error", err)
			continue
		}
		switch ctrl := Control(msg.Type); ctrl {
		case ControlPause, ControlResume, ControlStop:
			select {
			case h.controls <- ctrl:
			default:
				h.logger.Warn("control signal dropped, channel full", "control", ctrl)
			}
		default:
			h.logger.Debug("unknown overlay control", "type", msg.Type)
		}
	}
}

// remove unregisters and closes a client. Safe to call more than once.
func (h *Hub) remove(c *client, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close(code, reason)
}

// broadcast sends one frame to every connected client. Clients with a full
// send buffer are dropped; the slowest consumer must not hold up the rest.
func (h *Hub) broadcast(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("overlay frame marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow overlay client")
		h.remove(c, websocket.StatusPolicyViolation, "client too slow")
	}
}

// Transcript broadcasts one finalized transcript line.
func (h *Hub) Transcript(ev types.TranscriptEvent) {
	h.broadcast(frame{
		Type:       "transcript",
		Speaker:    ev.Speaker.String(),
		Text:       ev.Text,
		Confidence: ev.Confidence,
		Timestamp:  ev.Timestamp,
	})
}

// Question implements [dispatch.Sink].
func (h *Hub) Question(intent types.QuestionIntent) {
	h.broadcast(frame{
		Type:       "question",
		Text:       intent.Text,
		Kind:       intent.Kind.String(),
		Confidence: intent.Confidence,
	})
}

// AnswerDelta implements [dispatch.Sink].
func (h *Hub) AnswerDelta(text string) {
	h.broadcast(frame{Type: "answer_delta", Text: text})
}

// AnswerDone implements [dispatch.Sink].
func (h *Hub) AnswerDone() {
	h.broadcast(frame{Type: "answer_done"})
}

// Fatal tells every client the pipeline stopped, then closes the hub. No
// partial answer follows a fatal notice.
func (h *Hub) Fatal(err error) {
	h.broadcast(frame{Type: "fatal", Error: err.Error()})
	h.Close()
}

// Close disconnects all clients. Idempotent; later broadcasts are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "shutting down")
	}
}
