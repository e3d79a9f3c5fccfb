// Package wsclient is the client side of the push protocol: it sends text
// commands and folds the metadata frames that precede each body back into a
// Reply.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/wspush/modules/common/logx"
	"github.com/gaspardpetit/wspush/modules/common/reconnect"
	"github.com/gaspardpetit/wspush/sdk/api/response"
)

// ErrNotConnected is returned when the client has no live connection.
var ErrNotConnected = errors.New("wsclient: not connected")

// Options configure Dial.
type Options struct {
	SessionID string
	ClientKey string
	ReadLimit int64
}

// Reply is everything the server pushed for one answer. Metadata frames that
// arrive before a body are collected on the reply the body completes.
type Reply struct {
	Status  int
	Header  http.Header
	Cookies []string
	Binary  bool
	Body    []byte
}

// Location returns the redirect target, if any.
func (r *Reply) Location() string { return r.Header.Get("Location") }

// Client is a single websocket connection to a push server. One goroutine
// reads the socket for the lifetime of the connection, so a reply deadline
// ends the wait without closing the connection.
type Client struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	frames chan inbound
	quit   chan struct{}
	once   sync.Once
	// err is the read error, valid once frames is closed.
	err error
}

type inbound struct {
	typ  websocket.MessageType
	data []byte
}

// Dial connects to url, which is usually ws://host:port/ws.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	hdr := http.Header{}
	if opts.ClientKey != "" {
		hdr.Set("Authorization", "Bearer "+opts.ClientKey)
	}
	if opts.SessionID != "" {
		hdr.Set("X-Session-Id", opts.SessionID)
	}
	ws, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}
	c := &Client{ws: ws, frames: make(chan inbound, 16), quit: make(chan struct{})}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		typ, data, err := c.ws.Read(context.Background())
		if err != nil {
			c.err = err
			return
		}
		select {
		case c.frames <- inbound{typ: typ, data: data}:
		case <-c.quit:
			c.err = net.ErrClosed
			return
		}
	}
}

// Send writes one text command.
func (c *Client) Send(ctx context.Context, msg string) error {
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.Write(ctx, websocket.MessageText, []byte(msg))
}

// ReadReply reads frames until a body arrives. Answers that carry no body,
// such as redirects, end when ctx does: the metadata gathered so far is
// returned together with ctx's error and the connection stays usable.
func (c *Client) ReadReply(ctx context.Context) (*Reply, error) {
	if c.ws == nil {
		return nil, ErrNotConnected
	}
	rep := &Reply{Header: http.Header{}}
	partial := func(err error) (*Reply, error) {
		if rep.Status != 0 || len(rep.Header) > 0 || len(rep.Cookies) > 0 {
			return rep, err
		}
		return nil, err
	}
	for {
		var in inbound
		select {
		case <-ctx.Done():
			return partial(ctx.Err())
		case f, ok := <-c.frames:
			if !ok {
				return partial(c.err)
			}
			in = f
		}
		f := response.ParseFrame(in.data)
		switch f.Kind {
		case response.KindStatus:
			rep.Status = f.Code
		case response.KindHeader:
			rep.Header.Add(f.Key, f.Value)
		case response.KindCookie:
			rep.Cookies = append(rep.Cookies, f.Value)
		default:
			rep.Binary = in.typ == websocket.MessageBinary
			rep.Body = f.Body
			return rep, nil
		}
	}
}

// Do sends msg and reads the reply. Calls are serialised so replies are not
// interleaved between goroutines.
func (c *Client) Do(ctx context.Context, msg string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Send(ctx, msg); err != nil {
		return nil, err
	}
	return c.ReadReply(ctx)
}

// Close performs the close handshake.
func (c *Client) Close() error {
	if c.ws == nil {
		return nil
	}
	c.stop()
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// stop releases the reader so the close handshake can read the peer's answer.
func (c *Client) stop() {
	c.once.Do(func() { close(c.quit) })
}

// Run dials url and calls serve with each connection. When serve returns with
// the connection lost and keepTrying is set, Run waits on the reconnect
// schedule and dials again. The attempt counter resets after every successful
// dial.
func Run(ctx context.Context, url string, opts Options, keepTrying bool, serve func(context.Context, *Client) error) error {
	attempt := 0
	for {
		c, err := Dial(ctx, url, opts)
		if err == nil {
			attempt = 0
			err = serve(ctx, c)
			c.stop()
			_ = c.ws.CloseNow()
			if err == nil || errors.Is(err, context.Canceled) {
				return err
			}
			if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !keepTrying {
			return err
		}
		d := reconnect.Delay(attempt)
		logx.Log.Warn().Err(err).Str("url", url).Dur("retry_in", d).Msg("connection to server lost; retrying")
		if werr := reconnect.Wait(ctx, attempt); werr != nil {
			return werr
		}
		attempt++
	}
}

// Cookie returns the name=value part of a Set-Cookie frame.
func Cookie(raw string) (name, value string) {
	first, _, _ := strings.Cut(raw, ";")
	name, value, _ = strings.Cut(first, "=")
	return strings.TrimSpace(name), strings.TrimSpace(value)
}
