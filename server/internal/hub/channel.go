package hub

import (
	"fmt"
	"os"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/wspush/modules/common/logx"
	"github.com/gaspardpetit/wspush/sdk/api/response"
	"github.com/gaspardpetit/wspush/server/internal/metrics"
)

// Push queues one frame for fd. It reports whether the frame was accepted;
// frames accepted for the same fd are written in the order they were pushed.
func (h *Hub) Push(fd int64, data []byte, binary, finish bool) bool {
	err := h.push(fd, data, binary, finish)
	metrics.RecordFrame(response.ParseFrame(data).Kind.String(), len(data), err == nil)
	if err != nil {
		logx.Log.Debug().Err(err).Int64("fd", fd).Int("bytes", len(data)).Msg("push rejected")
		return false
	}
	return true
}

func (h *Hub) push(fd int64, data []byte, binary, finish bool) error {
	c := h.lookup(fd)
	if c == nil {
		return ErrUnknownConn
	}
	if !c.allow() {
		return ErrRateLimited
	}
	// the caller may reuse data once Push returns
	buf := make([]byte, len(data))
	copy(buf, data)
	return c.enqueue(job{kind: jobFrame, data: buf, binary: binary, finish: finish})
}

// SendFile queues the transfer of length bytes of path starting at offset.
// A zero length sends everything from offset to the end of the file; a
// length running past the end is truncated to the file size. An empty file
// at offset 0 is accepted and sends nothing.
func (h *Hub) SendFile(fd int64, path string, offset, length int64) bool {
	err := h.sendFile(fd, path, offset, length)
	if err != nil {
		metrics.RecordFile(0, false)
		logx.Log.Debug().Err(err).Int64("fd", fd).Str("path", path).Msg("send file rejected")
		return false
	}
	return true
}

func (h *Hub) sendFile(fd int64, path string, offset, length int64) error {
	c := h.lookup(fd)
	if c == nil {
		return ErrUnknownConn
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if offset < 0 || length < 0 {
		return fmt.Errorf("invalid range offset=%d length=%d", offset, length)
	}
	if st.Size() == 0 && offset == 0 {
		// nothing to stream; the transfer is complete
		return nil
	}
	if offset >= st.Size() {
		return fmt.Errorf("offset %d beyond size %d", offset, st.Size())
	}
	if rest := st.Size() - offset; length > rest {
		length = rest
	}
	if !c.allow() {
		return ErrRateLimited
	}
	return c.enqueue(job{kind: jobFile, path: path, offset: offset, length: length})
}

// Disconnect closes fd once the frames queued before it are written. When
// the queue is full the connection is closed right away.
func (h *Hub) Disconnect(fd int64, code websocket.StatusCode, reason string) bool {
	c := h.lookup(fd)
	if c == nil {
		return false
	}
	err := c.enqueue(job{kind: jobClose, code: code, reason: reason})
	switch err {
	case nil:
		return true
	case ErrQueueFull:
		c.log.Warn().Msg("send queue full, closing without flush")
		_ = c.ws.Close(code, reason)
		c.shutdown()
		return true
	default:
		return false
	}
}
