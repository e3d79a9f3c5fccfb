// Package handlers holds the event handlers shipped with the server.
package handlers

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gaspardpetit/wspush/sdk/api/response"
	"github.com/gaspardpetit/wspush/server/internal/hub"
)

// Mux dispatches text events on their first word, case-insensitively.
// Binary events and unknown verbs go to the fallback handler.
type Mux struct {
	mu       sync.RWMutex
	routes   map[string]hub.Handler
	fallback hub.Handler
}

// NewMux returns a Mux; a nil fallback echoes events back.
func NewMux(fallback hub.Handler) *Mux {
	if fallback == nil {
		fallback = Echo()
	}
	return &Mux{routes: map[string]hub.Handler{}, fallback: fallback}
}

// Handle registers h for verb.
func (m *Mux) Handle(verb string, h hub.Handler) {
	m.mu.Lock()
	m.routes[strings.ToUpper(verb)] = h
	m.mu.Unlock()
}

func (m *Mux) ServeEvent(ctx context.Context, ev hub.Event, resp response.Response) {
	h := m.fallback
	if !ev.Binary {
		verb, _ := splitVerb(ev.Data)
		m.mu.RLock()
		if r, ok := m.routes[strings.ToUpper(verb)]; ok {
			h = r
		}
		m.mu.RUnlock()
	}
	h.ServeEvent(ctx, ev, resp)
}

func splitVerb(data []byte) (string, string) {
	line := string(bytes.TrimSpace(data))
	verb, rest, _ := strings.Cut(line, " ")
	return verb, strings.TrimSpace(rest)
}

// Echo writes every event back with the frame type it arrived with.
func Echo() hub.Handler {
	return hub.HandlerFunc(func(_ context.Context, ev hub.Event, resp response.Response) {
		resp.End(ev.Data, response.WithBinaryData(ev.Binary))
	})
}

// Default returns the mux served by the wspush binary: file access below
// root plus redirect, cookie and quit verbs, echoing anything else.
func Default(root string) *Mux {
	files := &Files{Root: root}
	m := NewMux(Echo())
	m.Handle("GET", files)
	m.Handle("RANGE", files)
	m.Handle("REDIRECT", Redirect())
	m.Handle("COOKIE", Cookie(func() int64 { return time.Now().Unix() }))
	m.Handle("QUIT", Quit())
	return m
}
