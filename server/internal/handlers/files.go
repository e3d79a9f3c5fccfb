package handlers

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/wspush/modules/common/logx"
	"github.com/gaspardpetit/wspush/sdk/api/response"
	"github.com/gaspardpetit/wspush/sdk/base/wsresponse"
	"github.com/gaspardpetit/wspush/server/internal/hub"
)

// Files serves a directory tree.
//
//	GET <path>                 whole file
//	RANGE <start> <end> <path> bytes [start, end)
type Files struct {
	Root string
}

func (f *Files) ServeEvent(_ context.Context, ev hub.Event, resp response.Response) {
	verb, rest := splitVerb(ev.Data)
	switch strings.ToUpper(verb) {
	case "GET":
		f.get(resp, rest, nil)
	case "RANGE":
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) != 3 {
			badRequest(resp, "usage: RANGE <start> <end> <path>")
			return
		}
		o := response.OptionsFromBag(map[string]string{"start": parts[0], "end": parts[1]})
		f.get(resp, parts[2], &o)
	default:
		badRequest(resp, "unknown verb "+verb)
	}
}

// resolve maps a client path below Root. Cleaning against "/" keeps ".."
// from escaping the root.
func (f *Files) resolve(p string) string {
	clean := path.Clean("/" + strings.TrimSpace(p))
	return filepath.Join(f.Root, filepath.FromSlash(clean))
}

func (f *Files) get(resp response.Response, p string, rng *response.Options) {
	full := f.resolve(p)
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		resp.Status(404)
		resp.Header("Content-Type: text/plain; charset=utf-8")
		resp.End([]byte("not found"), response.WithBinaryData(false))
		return
	}
	ctype := mime.TypeByExtension(filepath.Ext(full))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	size := st.Size()
	if rng == nil {
		if size == 0 {
			// an empty push is refused, so a body frame marks the end of the answer
			resp.Status(204)
			resp.End([]byte("empty file"), response.WithBinaryData(false))
			return
		}
		resp.Status(200)
		resp.Header("Content-Type: " + ctype)
		resp.Header("Content-Length: " + strconv.FormatInt(size, 10))
		if !resp.SendFile(full) {
			logx.Log.Warn().Str("path", full).Msg("send file failed")
		}
		return
	}
	start, end := rng.Start, min(rng.End, size)
	length := max(0, end-start)
	if start < 0 || start >= size || length == 0 {
		resp.Status(416)
		resp.Header(fmt.Sprintf("Content-Range: bytes */%d", size))
		resp.End([]byte("range not satisfiable"), response.WithBinaryData(false))
		return
	}
	resp.Status(206)
	resp.Header("Content-Type: " + ctype)
	resp.Header(fmt.Sprintf("Content-Range: bytes %d-%d/%d", start, end-1, size))
	resp.Header("Content-Length: " + strconv.FormatInt(length, 10))
	resp.SendFile(full, response.WithRange(start, end))
}

func badRequest(resp response.Response, msg string) {
	resp.Status(400)
	resp.End([]byte(msg), response.WithBinaryData(false))
}

// Redirect answers "REDIRECT <url> [code]".
func Redirect() hub.Handler {
	return hub.HandlerFunc(func(_ context.Context, ev hub.Event, resp response.Response) {
		_, rest := splitVerb(ev.Data)
		url, codeStr, _ := strings.Cut(rest, " ")
		if url == "" {
			badRequest(resp, "usage: REDIRECT <url> [code]")
			return
		}
		code := 302
		if n, err := strconv.Atoi(strings.TrimSpace(codeStr)); err == nil && n >= 300 && n < 400 {
			code = n
		}
		resp.Redirect(url, code)
	})
}

// Cookie answers "COOKIE <key> <value> [max-age-seconds]" by setting a
// session scoped cookie.
func Cookie(now func() int64) hub.Handler {
	return hub.HandlerFunc(func(_ context.Context, ev hub.Event, resp response.Response) {
		_, rest := splitVerb(ev.Data)
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			badRequest(resp, "usage: COOKIE <key> <value> [max-age]")
			return
		}
		opts := []response.CookieOption{response.WithHTTPOnly(true), response.WithSameSite("Strict")}
		if len(fields) > 2 {
			if n, err := strconv.ParseInt(fields[2], 10, 64); err == nil && n > 0 {
				opts = append(opts, response.WithExpire(now()+n))
			}
		}
		resp.Cookie(fields[0], fields[1], opts...)
	})
}

type disconnector interface {
	Disconnect(fd int64, code websocket.StatusCode, reason string) bool
}

// Quit answers "QUIT [message]" with a final frame, then closes the
// connection through the channel the response is bound to.
func Quit() hub.Handler {
	return hub.HandlerFunc(func(_ context.Context, ev hub.Event, resp response.Response) {
		_, msg := splitVerb(ev.Data)
		if msg == "" {
			msg = "bye"
		}
		resp.End([]byte(msg), response.WithBinaryData(false))
		wr, ok := resp.(*wsresponse.Response)
		if !ok {
			return
		}
		if d, ok := wr.Server().(disconnector); ok {
			d.Disconnect(wr.Fd(), websocket.StatusNormalClosure, "quit")
		}
	})
}
