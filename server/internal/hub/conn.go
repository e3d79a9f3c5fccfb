package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gaspardpetit/wspush/server/internal/metrics"
)

// ConnInfo describes a live connection.
type ConnInfo struct {
	Fd         int64     `json:"fd"`
	SessionID  string    `json:"session_id"`
	RemoteAddr string    `json:"remote_addr"`
	Since      time.Time `json:"since"`
}

type jobKind int

const (
	jobFrame jobKind = iota
	jobFile
	jobClose
)

// job is one unit of the ordered per-connection queue.
type job struct {
	kind   jobKind
	data   []byte
	binary bool
	finish bool

	path   string
	offset int64
	length int64

	code   websocket.StatusCode
	reason string
}

type conn struct {
	ConnInfo

	ws      *websocket.Conn
	send    chan job
	done    chan struct{}
	once    sync.Once
	cancel  context.CancelFunc
	limiter *rate.Limiter
	log     zerolog.Logger
}

func (c *conn) info() ConnInfo { return c.ConnInfo }

// shutdown stops the writer and frees the socket. Safe to call repeatedly.
func (c *conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		_ = c.ws.CloseNow()
	})
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue hands j to the writer without blocking.
func (c *conn) enqueue(j job) error {
	if c.closed() {
		return ErrClosed
	}
	select {
	case c.send <- j:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

func (c *conn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func messageType(binary bool) websocket.MessageType {
	if binary {
		return websocket.MessageBinary
	}
	return websocket.MessageText
}

// writer drains the queue in submission order. Frames pushed with
// finish=false open or continue a fragmented message which the next final
// frame completes.
type writer struct {
	c            *conn
	timeout      time.Duration
	chunkSize    int
	open         io.WriteCloser
	openIsBinary bool
	// openCancel ends the write deadline of the open message.
	openCancel context.CancelFunc
}

func (w *writer) run(ctx context.Context) {
	defer func() { _ = w.flush() }()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.c.done:
			return
		case j := <-w.c.send:
			stop, err := w.handle(ctx, j)
			if err != nil {
				if ctx.Err() == nil {
					w.c.log.Warn().Err(err).Msg("write failed")
				}
				w.c.shutdown()
				return
			}
			if stop {
				return
			}
		}
	}
}

func (w *writer) handle(ctx context.Context, j job) (bool, error) {
	switch j.kind {
	case jobFrame:
		return false, w.frame(ctx, j)
	case jobFile:
		n, err := w.file(ctx, j)
		metrics.RecordFile(n, err == nil)
		if err != nil {
			var fe *fileError
			if errors.As(err, &fe) {
				// the message was never started, the connection is still usable
				w.c.log.Warn().Err(err).Str("path", j.path).Msg("send file")
				return false, nil
			}
			return false, err
		}
		w.c.log.Debug().Str("path", j.path).Int64("bytes", n).Msg("file sent")
		return false, nil
	case jobClose:
		if err := w.flush(); err != nil {
			return true, err
		}
		if err := w.c.ws.Close(j.code, j.reason); err != nil {
			w.c.log.Debug().Err(err).Msg("close handshake")
		}
		w.c.shutdown()
		return true, nil
	}
	return false, fmt.Errorf("unknown job kind %d", j.kind)
}

func (w *writer) frame(ctx context.Context, j job) error {
	if w.open == nil && j.finish {
		wctx, cancel := w.writeContext(ctx)
		defer cancel()
		return w.c.ws.Write(wctx, messageType(j.binary), j.data)
	}
	if w.open == nil {
		// the deadline covers the whole message, up to its final frame
		mctx, cancel := w.writeContext(ctx)
		mw, err := w.c.ws.Writer(mctx, messageType(j.binary))
		if err != nil {
			cancel()
			return err
		}
		w.open = mw
		w.openIsBinary = j.binary
		w.openCancel = cancel
	} else if j.binary != w.openIsBinary {
		w.c.log.Debug().Bool("binary", j.binary).Msg("continuation keeps the type of the first fragment")
	}
	if _, err := w.open.Write(j.data); err != nil {
		return err
	}
	if j.finish {
		return w.flush()
	}
	return nil
}

// flush completes a fragmented message left open by non-final frames.
func (w *writer) flush() error {
	if w.open == nil {
		return nil
	}
	err := w.open.Close()
	w.open = nil
	w.openCancel()
	w.openCancel = nil
	return err
}

func (w *writer) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.timeout)
}

// fileError reports a failure that happened before any byte of the file
// message reached the socket.
type fileError struct{ err error }

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

// file streams length bytes of path from offset as one binary message split
// in chunkSize fragments. A zero length streams to the end of the file.
func (w *writer) file(ctx context.Context, j job) (int64, error) {
	if err := w.flush(); err != nil {
		return 0, err
	}
	f, err := os.Open(j.path)
	if err != nil {
		return 0, &fileError{err}
	}
	defer f.Close()
	if _, err := f.Seek(j.offset, io.SeekStart); err != nil {
		return 0, &fileError{fmt.Errorf("seek %d: %w", j.offset, err)}
	}
	var r io.Reader = f
	if j.length > 0 {
		r = io.LimitReader(f, j.length)
	}
	buf := make([]byte, w.chunkSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return 0, &fileError{fmt.Errorf("nothing to read at offset %d", j.offset)}
		}
		return 0, &fileError{err}
	}
	wctx, cancel := w.writeContext(ctx)
	defer cancel()
	mw, err := w.c.ws.Writer(wctx, websocket.MessageBinary)
	if err != nil {
		return 0, err
	}
	var total int64
	for n > 0 {
		if _, err := mw.Write(buf[:n]); err != nil {
			return total, err
		}
		total += int64(n)
		n, err = r.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			_ = mw.Close()
			return total, err
		}
	}
	return total, mw.Close()
}
