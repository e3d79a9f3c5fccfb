package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/wspush/sdk/api/response"
)

// scriptServer answers every text message with the frames returned by answer.
func scriptServer(t *testing.T, answer func(msg string) [][]byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.CloseNow()
		ctx := r.Context()
		for {
			_, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			msg := string(data)
			if msg == "QUIT" {
				_ = ws.Close(websocket.StatusNormalClosure, "quit")
				return
			}
			if msg == "SESSION" {
				msg += " " + r.Header.Get("X-Session-Id")
			}
			for _, f := range answer(msg) {
				typ := websocket.MessageBinary
				if response.ParseFrame(f).Kind == response.KindBody {
					typ = websocket.MessageText
				}
				if err := ws.Write(ctx, typ, f); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestDoAssemblesReply(t *testing.T) {
	ts := scriptServer(t, func(msg string) [][]byte {
		return [][]byte{
			[]byte(response.StatusLine(200)),
			[]byte(response.HeaderLine("Content-Type", "text/plain")),
			[]byte(response.HeaderLine("X-Multi", "a")),
			[]byte(response.HeaderLine("X-Multi", "b")),
			[]byte(response.CookieLine("sid=42;path=/")),
			[]byte("echo " + msg),
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(ts), Options{ClientKey: "k", SessionID: "abc"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	rep, err := c.Do(ctx, "SESSION")
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if rep.Status != 200 || rep.Header.Get("Content-Type") != "text/plain" || string(rep.Body) != "echo SESSION abc" {
		t.Fatalf("reply = %+v", rep)
	}
	if got := rep.Header.Values("X-Multi"); len(got) != 2 || got[1] != "b" {
		t.Fatalf("X-Multi = %v", got)
	}
	if len(rep.Cookies) != 1 {
		t.Fatalf("cookies = %v", rep.Cookies)
	}
	if k, v := Cookie(rep.Cookies[0]); k != "sid" || v != "42" {
		t.Fatalf("cookie = %q=%q", k, v)
	}
	if rep.Binary {
		t.Fatalf("text body reported as binary")
	}
}

func TestReplyWithoutBodyKeepsConnection(t *testing.T) {
	ts := scriptServer(t, func(msg string) [][]byte {
		if msg != "REDIRECT" {
			return [][]byte{[]byte("pong")}
		}
		return [][]byte{
			[]byte(response.StatusLine(302)),
			[]byte(response.HeaderLine("Location", "https://example.com")),
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(ts), Options{ClientKey: "k"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if err := c.Send(ctx, "REDIRECT"); err != nil {
		t.Fatalf("send: %v", err)
	}
	rctx, rcancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer rcancel()
	rep, err := c.ReadReply(rctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadReply = %v; want deadline exceeded", err)
	}
	if rep == nil || rep.Status != 302 || rep.Location() != "https://example.com" {
		t.Fatalf("reply = %+v", rep)
	}

	rep, err = c.Do(ctx, "PING")
	if err != nil {
		t.Fatalf("follow-up Do: %v", err)
	}
	if rep.Status != 0 || string(rep.Body) != "pong" {
		t.Fatalf("follow-up reply = %+v", rep)
	}
}

func TestDialUnauthorized(t *testing.T) {
	ts := scriptServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Dial(ctx, wsURL(ts), Options{}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestNotConnected(t *testing.T) {
	var c Client
	if err := c.Send(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send = %v", err)
	}
	if _, err := c.ReadReply(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("ReadReply = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
}

func TestRunStopsOnNormalClosure(t *testing.T) {
	ts := scriptServer(t, func(msg string) [][]byte { return [][]byte{[]byte(msg)} })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var calls atomic.Int32
	err := Run(ctx, wsURL(ts), Options{ClientKey: "k"}, true, func(ctx context.Context, c *Client) error {
		calls.Add(1)
		if rep, err := c.Do(ctx, "ping"); err != nil || string(rep.Body) != "ping" {
			t.Errorf("ping = %+v, %v", rep, err)
		}
		_, err := c.Do(ctx, "QUIT")
		return err
	})
	if err != nil {
		t.Fatalf("Run = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("serve called %d times", calls.Load())
	}
}

func TestRunWithoutRetryReturnsDialError(t *testing.T) {
	ts := scriptServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Run(ctx, wsURL(ts), Options{}, false, func(context.Context, *Client) error {
		t.Fatalf("serve must not run")
		return nil
	})
	if err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestRunRetriesUntilCanceled(t *testing.T) {
	ts := scriptServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := Run(ctx, wsURL(ts), Options{}, true, func(context.Context, *Client) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want deadline exceeded", err)
	}
}
