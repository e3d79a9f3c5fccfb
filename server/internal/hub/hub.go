// Package hub owns the websocket connections of the server. It hands every
// connection a numeric handle, dispatches inbound messages to a Handler and
// implements the push channel used by wsresponse.
package hub

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gaspardpetit/wspush/modules/common/logx"
	"github.com/gaspardpetit/wspush/sdk/api/response"
	"github.com/gaspardpetit/wspush/sdk/base/wsresponse"
	"github.com/gaspardpetit/wspush/server/internal/metrics"
)

var (
	ErrUnknownConn = errors.New("hub: unknown connection")
	ErrClosed      = errors.New("hub: connection closed")
	ErrQueueFull   = errors.New("hub: send queue full")
	ErrRateLimited = errors.New("hub: push rate exceeded")
)

// Event is one inbound websocket message.
type Event struct {
	Fd        int64
	SessionID string
	Binary    bool
	Data      []byte
}

// Handler answers inbound events. resp is bound to the connection the event
// arrived on and must not be kept after ServeEvent returns.
type Handler interface {
	ServeEvent(ctx context.Context, ev Event, resp response.Response)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event, resp response.Response)

func (f HandlerFunc) ServeEvent(ctx context.Context, ev Event, resp response.Response) {
	f(ctx, ev, resp)
}

// Config defines hub tunables.
type Config struct {
	SendQueue     int
	WriteTimeout  time.Duration
	FileChunkSize int
	ReadLimit     int64
	PushRate      float64
	PushBurst     int
	// ClientKey, when set, must be presented as a bearer token.
	ClientKey      string
	OriginPatterns []string

	OnOpen  func(ConnInfo)
	OnClose func(ConnInfo)
}

// Hub tracks live connections by handle.
type Hub struct {
	mu       sync.RWMutex
	conns    map[int64]*conn
	next     atomic.Int64
	cfg      Config
	handler  Handler
	draining func() bool
}

var _ wsresponse.Channel = (*Hub)(nil)

// New creates a hub dispatching to handler. drainingFn may be nil.
func New(cfg Config, handler Handler, drainingFn func() bool) *Hub {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 64
	}
	if cfg.FileChunkSize <= 0 {
		cfg.FileChunkSize = 64 << 10
	}
	if cfg.ReadLimit == 0 {
		cfg.ReadLimit = 1 << 20
	}
	if cfg.PushRate > 0 && cfg.PushBurst <= 0 {
		cfg.PushBurst = 1
	}
	if handler == nil {
		handler = HandlerFunc(func(context.Context, Event, response.Response) {})
	}
	return &Hub{conns: make(map[int64]*conn), cfg: cfg, handler: handler, draining: drainingFn}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.draining != nil && h.draining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	if h.cfg.ClientKey != "" && !checkBearer(r.Header.Get("Authorization"), h.cfg.ClientKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		logx.Log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket accept")
		return
	}
	ws.SetReadLimit(h.cfg.ReadLimit)

	// request contexts end with the handler; the connection lives on its own
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		ConnInfo: ConnInfo{
			Fd:         h.next.Add(1),
			SessionID:  sessionID(r),
			RemoteAddr: r.RemoteAddr,
			Since:      time.Now(),
		},
		ws:     ws,
		send:   make(chan job, h.cfg.SendQueue),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	if h.cfg.PushRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.cfg.PushRate), h.cfg.PushBurst)
	}
	c.log = logx.Conn(c.Fd, c.SessionID)

	h.mu.Lock()
	h.conns[c.Fd] = c
	h.mu.Unlock()
	metrics.ConnOpened()
	c.log.Info().Str("remote_addr", c.RemoteAddr).Msg("connected")

	wr := &writer{c: c, timeout: h.cfg.WriteTimeout, chunkSize: h.cfg.FileChunkSize}
	go wr.run(ctx)

	if h.cfg.OnOpen != nil {
		h.cfg.OnOpen(c.info())
	}
	defer func() {
		c.shutdown()
		metrics.ConnClosed()
		if h.cfg.OnClose != nil {
			h.cfg.OnClose(c.info())
		}
		h.mu.Lock()
		delete(h.conns, c.Fd)
		h.mu.Unlock()
	}()
	h.readLoop(ctx, c)
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			switch {
			case errors.As(err, &ce):
				lvl := c.log.Info()
				if ce.Code != websocket.StatusNormalClosure && ce.Code != websocket.StatusGoingAway {
					lvl = c.log.Warn()
				}
				lvl.Int("code", int(ce.Code)).Str("reason", ce.Reason).Msg("disconnected")
			case ctx.Err() != nil:
				c.log.Info().Msg("disconnected")
			default:
				c.log.Warn().Err(err).Msg("disconnected")
			}
			return
		}
		h.dispatch(ctx, c, Event{Fd: c.Fd, SessionID: c.SessionID, Binary: typ == websocket.MessageBinary, Data: data})
	}
}

// dispatch runs the handler with a response bound to the event's connection.
func (h *Hub) dispatch(ctx context.Context, c *conn, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error().Interface("panic", p).Msg("handler panic")
		}
	}()
	h.handler.ServeEvent(ctx, ev, wsresponse.New(ev.SessionID, h, ev.Fd))
}

func (h *Hub) lookup(fd int64) *conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[fd]
}

// Conns returns a snapshot of live connections ordered by handle.
func (h *Hub) Conns() []ConnInfo {
	h.mu.RLock()
	out := make([]ConnInfo, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c.info())
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Fd < out[j].Fd })
	return out
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Exists reports whether fd is a live connection.
func (h *Hub) Exists(fd int64) bool {
	return h.lookup(fd) != nil
}

// Wait blocks until every connection is gone or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for h.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Close asks every connection to close after flushing its queue.
func (h *Hub) Close() {
	h.mu.RLock()
	fds := make([]int64, 0, len(h.conns))
	for fd := range h.conns {
		fds = append(fds, fd)
	}
	h.mu.RUnlock()
	for _, fd := range fds {
		h.Disconnect(fd, websocket.StatusGoingAway, "server shutdown")
	}
}

func sessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("session_id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Session-Id")); v != "" {
		return v
	}
	return uuid.NewString()
}

func checkBearer(authHeader, expected string) bool {
	ah := strings.TrimSpace(authHeader)
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return false
	}
	tok := strings.TrimSpace(ah[7:])
	return subtle.ConstantTimeCompare([]byte(tok), []byte(expected)) == 1
}
