// Package wsresponse answers events received on a push-addressed websocket
// connection through the response.Response contract. Status, headers and
// cookies travel as metadata frames pushed ahead of the body.
package wsresponse

import (
	"github.com/gaspardpetit/wspush/sdk/api/response"
)

// Channel is the push surface of the serving runtime. It is shared by every
// live connection; frames pushed for one fd must be delivered in order.
type Channel interface {
	Push(fd int64, data []byte, binary, finish bool) bool
	SendFile(fd int64, path string, offset, length int64) bool
}

// Response binds one connection handle of a Channel. It holds no mutable
// state and is meant to live for the handling of a single event.
type Response struct {
	sessionID string
	server    Channel
	fd        int64
}

var _ response.Response = (*Response)(nil)

// New returns a Response pushing to fd through ch. An empty sessionID means
// the event carries no session.
func New(sessionID string, ch Channel, fd int64) *Response {
	return &Response{sessionID: sessionID, server: ch, fd: fd}
}

// Fd returns the bound connection handle.
func (r *Response) Fd() int64 { return r.fd }

// Server returns the channel the response pushes to.
func (r *Response) Server() Channel { return r.server }

// SessionID returns the session the event belongs to, or "".
func (r *Response) SessionID() string { return r.sessionID }

// Status pushes "Header-Status: <code>".
func (r *Response) Status(code int) bool {
	return r.Write([]byte(response.StatusLine(code)))
}

// Header pushes "Header-<Key>: <Value>" for a raw "Key: Value" line.
func (r *Response) Header(raw string) bool {
	key, value := response.SplitHeader(raw)
	return r.Write([]byte(response.HeaderLine(key, value)))
}

// Redirect pushes a status frame then a Location header. The result only
// reflects the Location push.
func (r *Response) Redirect(url string, code ...int) bool {
	status := 302
	if len(code) > 0 && code[0] != 0 {
		status = code[0]
	}
	r.Status(status)
	return r.Write([]byte(response.HeaderLine("Location", url)))
}

// Cookie pushes "Header-Set-Cookie: <attributes>".
func (r *Response) Cookie(key, value string, opts ...response.CookieOption) bool {
	c := response.ResolveCookie(opts...)
	return r.Write([]byte(response.CookieLine(response.CookieString(key, value, c))))
}

// Write pushes data as one frame. Empty data is refused without touching the
// channel since some runtimes treat a zero-length push as a close.
func (r *Response) Write(data []byte, opts ...response.Option) bool {
	if len(data) == 0 {
		return false
	}
	o := response.ResolveOptions(opts...)
	return r.server.Push(r.fd, data, o.BinaryData, o.Finish)
}

// SendFile transfers filename from Start for End-Start bytes. An inverted or
// missing range yields a zero length.
func (r *Response) SendFile(filename string, opts ...response.Option) bool {
	o := response.ResolveOptions(opts...)
	return r.server.SendFile(r.fd, filename, o.Start, max(0, o.End-o.Start))
}

// End writes data like Write. The connection stays open; callers disconnect
// through the runtime.
func (r *Response) End(data []byte, opts ...response.Option) bool {
	if len(data) == 0 {
		return false
	}
	return r.Write(data, opts...)
}
