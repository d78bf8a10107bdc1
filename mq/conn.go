// File: mq/conn.go
// Package mq: connection lifecycle and the queued-message API.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Conn owns one stream socket, a FIFO of queued outbound messages, and
// at most one in-flight inbound operation. Enqueuing and arming never
// block; all transfer work happens inside Drive.

package mq

import (
	"bytes"
	"fmt"
	"os"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/internal/sockfd"
	"github.com/momentics/hioload-mq/pool"
)

// Well-known AF_VSOCK context IDs, mirroring <linux/vm_sockets.h>.
const (
	VsockCIDAny   uint32 = 0xFFFFFFFF
	VsockCIDLocal uint32 = 1
	VsockCIDHost  uint32 = 2
)

// socket is the narrow descriptor-level contract the state machine
// drives. The production implementation lives in internal/sockfd; tests
// substitute a scripted in-memory fake.
type socket interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Sendfile(src *os.File, off int64, n int) (int, error)
	ConnectDone() (bool, error)
	LocalAddr() string
	RemoteAddr() string
	Close() error
	FD() int
}

// Conn is one message connection. All methods must be called from a
// single goroutine; use Poll to manage many connections from one loop.
type Conn struct {
	sock   socket
	cfg    *Config
	chunks *pool.BytePool

	state api.ConnState
	err   error // terminal failure, nil after a voluntary Close

	sendq *queue.Queue // of *outMsg, enqueue order is send order

	in   inOp
	done *recvEvent // completed inbound message awaiting Recv

	tag any

	stats api.ConnStats
}

// Connect dials host:port without blocking. The returned connection is
// Connected if the handshake finished synchronously, otherwise it stays
// Connecting until Drive observes the outcome. Messages may be queued in
// either state.
func Connect(host string, port int, opts ...Option) (*Conn, error) {
	cfg := applyOptions(opts)
	sock, connected, err := sockfd.DialInet(host, port, cfg.NoDelay)
	if err != nil {
		return nil, api.NewError(api.ErrCodeConnect, fmt.Sprintf("dial %s:%d", host, port)).WithCause(err)
	}
	state := api.StateConnecting
	if connected {
		state = api.StateConnected
	}
	return newConn(sock, cfg, nil, state), nil
}

// ConnectVsock dials an AF_VSOCK peer by context ID and port.
func ConnectVsock(cid, port uint32, opts ...Option) (*Conn, error) {
	cfg := applyOptions(opts)
	sock, connected, err := sockfd.DialVsock(cid, port)
	if err != nil {
		return nil, api.NewError(api.ErrCodeConnect, fmt.Sprintf("dial vsock %d:%d", cid, port)).WithCause(err)
	}
	state := api.StateConnecting
	if connected {
		state = api.StateConnected
	}
	return newConn(sock, cfg, nil, state), nil
}

func newConn(sock socket, cfg *Config, chunks *pool.BytePool, state api.ConnState) *Conn {
	if chunks == nil {
		chunks = pool.NewBytePool(cfg.ChunkSize)
	}
	return &Conn{
		sock:   sock,
		cfg:    cfg,
		chunks: chunks,
		state:  state,
		sendq:  queue.New(),
	}
}

// SendBytes queues p as one outbound message. The slice stays owned by
// the caller and must not change until the message has been sent.
// Queuing never blocks; transfer happens lazily inside Drive.
func (c *Conn) SendBytes(p []byte) error {
	if c.state == api.StateClosed {
		return api.NewError(api.ErrCodeInvalidState, "send on closed connection")
	}
	m := &outMsg{length: int64(len(p)), src: &memSource{data: p}}
	putHeader(m.hdr[:], uint64(len(p)))
	c.sendq.Add(m)
	return nil
}

// SendBuffer queues the buffer's current contents as one outbound
// message. The buffer stays owned by the caller and must not change
// until the message has been sent.
func (c *Conn) SendBuffer(b *bytes.Buffer) error {
	return c.SendBytes(b.Bytes())
}

// SendFile queues a streaming message carrying everything between the
// file's current offset and its end, measured once here. The descriptor
// stays owned by the caller; the transfer reads positionally, so the
// file's own cursor is untouched.
func (c *Conn) SendFile(f *os.File) error {
	if c.state == api.StateClosed {
		return api.NewError(api.ErrCodeInvalidState, "send on closed connection")
	}
	length, off, err := fileRemaining(f)
	if err != nil {
		return fmt.Errorf("measure %s: %w", f.Name(), err)
	}
	m := &outMsg{length: length, src: &fileSource{f: f, off: off}}
	putHeader(m.hdr[:], uint64(length))
	c.sendq.Add(m)
	return nil
}

// StoreBuffer arms the next inbound message to land in b, resetting it
// first. The buffer stays owned by the caller.
func (c *Conn) StoreBuffer(b *bytes.Buffer) error {
	if err := c.armCheck(); err != nil {
		return err
	}
	b.Reset()
	c.in.sink = &memSink{buf: b}
	return nil
}

// StoreFile arms the next inbound message to stream into f at its
// current offset. The descriptor stays owned by the caller.
func (c *Conn) StoreFile(f *os.File) error {
	if err := c.armCheck(); err != nil {
		return err
	}
	c.in.sink = &fileSink{f: f}
	return nil
}

func (c *Conn) armCheck() error {
	switch {
	case c.state == api.StateClosed:
		return api.NewError(api.ErrCodeInvalidState, "receive on closed connection")
	case c.in.sink != nil:
		return api.NewError(api.ErrCodeInvalidState, "receive already armed")
	case c.done != nil:
		return api.NewError(api.ErrCodeInvalidState, "completed message not drained")
	}
	return nil
}

// Recv drains the most recently completed inbound message, reporting the
// sink kind the receiver armed and the payload length. It returns
// MsgNone when nothing has completed, and the terminal error once the
// connection is closed with nothing left to drain.
func (c *Conn) Recv() (api.MsgKind, int64, error) {
	if c.done != nil {
		ev := *c.done
		c.done = nil
		return ev.kind, ev.size, nil
	}
	if c.state == api.StateClosed {
		return api.MsgNone, 0, c.terminalErr()
	}
	return api.MsgNone, 0, nil
}

// Close shuts the connection down: queued outbound messages are
// discarded and an in-flight inbound transfer is abandoned, leaving
// whatever bytes already reached its sink. Caller-supplied buffers and
// descriptors are never closed here, only the connection's own socket.
// Idempotent.
func (c *Conn) Close() error {
	if c.state == api.StateClosed {
		return nil
	}
	c.state = api.StateClosed
	c.discardPending()
	return c.sock.Close()
}

// discardPending drops queued outbound messages and the in-flight
// inbound operation. Payload sources and sinks are caller-owned, so
// there is nothing to release.
func (c *Conn) discardPending() {
	for c.sendq.Length() > 0 {
		c.sendq.Remove()
	}
	c.in.reset()
}

// State reports the connection lifecycle state.
func (c *Conn) State() api.ConnState {
	return c.state
}

// Err reports the failure that killed the connection, or nil while it is
// alive or after a voluntary Close.
func (c *Conn) Err() error {
	return c.err
}

func (c *Conn) terminalErr() error {
	if c.err != nil {
		return c.err
	}
	return api.ErrConnClosed
}

// Stats returns a snapshot of the connection's transfer counters.
func (c *Conn) Stats() api.ConnStats {
	s := c.stats
	s.SendQueueLen = c.sendq.Length()
	return s
}

// Tag returns the caller attachment set with SetTag.
func (c *Conn) Tag() any {
	return c.tag
}

// SetTag attaches an arbitrary caller value to the connection, typically
// the application object the connection serves. The transport never
// inspects it.
func (c *Conn) SetTag(tag any) {
	c.tag = tag
}

// LocalAddr reports the socket's local address.
func (c *Conn) LocalAddr() string {
	return c.sock.LocalAddr()
}

// RemoteAddr reports the peer's address.
func (c *Conn) RemoteAddr() string {
	return c.sock.RemoteAddr()
}

// interest reports which readiness events would let Drive make progress.
func (c *Conn) interest() int {
	switch c.state {
	case api.StateConnecting:
		return sockfd.EventWrite
	case api.StateClosed:
		return 0
	}
	ev := 0
	if c.sendq.Length() > 0 {
		ev |= sockfd.EventWrite
	}
	if c.wantRead() {
		ev |= sockfd.EventRead
	}
	return ev
}

// wantRead is false only while payload consumption is stalled waiting
// for the caller to arm a sink; header bytes are always welcome.
func (c *Conn) wantRead() bool {
	return !(c.in.headerDone() && c.in.sink == nil)
}

func (c *Conn) pollFD() int {
	if c.state == api.StateClosed {
		return -1
	}
	return c.sock.FD()
}
