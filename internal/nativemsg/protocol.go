// Package nativemsg implements the browser native-messaging framing: a
// 4-byte native-endian length followed by that many bytes of UTF-8 JSON.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrProtocol marks a malformed or truncated inbound message. There is no
// way to answer it, so the reader should stop.
var ErrProtocol = errors.New("nativemsg: protocol error")

// Conn reads requests from r and writes responses to w.
type Conn struct {
	r  io.Reader
	w  io.Writer
	mu sync.Mutex // serializes writes
}

// NewConn wraps the host's stdin and stdout.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: r, w: w}
}

// ReadFrame returns the next message body. It returns io.EOF when input ends
// cleanly on a frame boundary and an error wrapping ErrProtocol otherwise.
func (c *Conn) ReadFrame() ([]byte, error) {
	var header [4]byte
	n, err := io.ReadFull(c.r, header[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read length: %v", ErrProtocol, err)
	}

	length := binary.NativeEndian.Uint32(header[:])
	if length == 0 {
		return nil, fmt.Errorf("%w: zero-length message", ErrProtocol)
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: message too large: %d > %d", ErrProtocol, length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.r, data); err != nil {
		return nil, fmt.Errorf("%w: read payload (%d bytes): %v", ErrProtocol, length, err)
	}
	return data, nil
}

// Recv reads and decodes the next request. Only frames that are not JSON
// objects are protocol errors; mistyped fields are reported on the Request.
func (c *Conn) Recv() (*Request, error) {
	data, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: decode request: %v", ErrProtocol, err)
	}
	return &req, nil
}

// Send marshals v and writes it as one frame.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("nativemsg: marshal: %w", err)
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return fmt.Errorf("nativemsg: message too large: %d bytes", len(data))
	}

	var header [4]byte
	binary.NativeEndian.PutUint32(header[:], uint32(len(data)))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("nativemsg: write header: %w", err)
	}
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("nativemsg: write payload: %w", err)
	}
	return nil
}
