// File: mq/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mq

import (
	"fmt"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/internal/sockfd"
	"github.com/momentics/hioload-mq/pool"
)

// Listener owns a non-blocking listening socket and produces accepted
// connections. Accepted connections inherit the listener's configuration
// and share its scratch-buffer pool. Like Conn, a Listener belongs to a
// single goroutine.
type Listener struct {
	sock   *sockfd.Socket
	cfg    *Config
	chunks *pool.BytePool
	closed bool
	tag    any
}

// Listen binds host:port and starts listening without blocking.
func Listen(host string, port int, opts ...Option) (*Listener, error) {
	cfg := applyOptions(opts)
	sock, err := sockfd.ListenInet(host, port, cfg.Backlog)
	if err != nil {
		return nil, api.NewError(api.ErrCodeBind, fmt.Sprintf("listen %s:%d", host, port)).WithCause(err)
	}
	return newListener(sock, cfg), nil
}

// ListenVsock binds an AF_VSOCK port. Use VsockCIDAny to accept peers
// from any context.
func ListenVsock(cid, port uint32, opts ...Option) (*Listener, error) {
	cfg := applyOptions(opts)
	sock, err := sockfd.ListenVsock(cid, port, cfg.Backlog)
	if err != nil {
		return nil, api.NewError(api.ErrCodeBind, fmt.Sprintf("listen vsock %d:%d", cid, port)).WithCause(err)
	}
	return newListener(sock, cfg), nil
}

func newListener(sock *sockfd.Socket, cfg *Config) *Listener {
	return &Listener{
		sock:   sock,
		cfg:    cfg,
		chunks: pool.NewBytePool(cfg.ChunkSize),
	}
}

// Accept returns the next pending connection, already Connected, or
// ErrWouldBlock when none is queued; wait for readability first.
func (l *Listener) Accept() (*Conn, error) {
	if l.closed {
		return nil, api.NewError(api.ErrCodeInvalidState, "accept on closed listener")
	}
	sock, err := l.sock.Accept(l.cfg.NoDelay)
	if err != nil {
		return nil, err
	}
	return newConn(sock, l.cfg, l.chunks, api.StateConnected), nil
}

// Addr reports the bound local address.
func (l *Listener) Addr() string {
	return l.sock.LocalAddr()
}

// Close stops listening. Connections accepted earlier are unaffected.
// Idempotent.
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.sock.Close()
}

// Tag returns the caller attachment set with SetTag.
func (l *Listener) Tag() any {
	return l.tag
}

// SetTag attaches an arbitrary caller value to the listener.
func (l *Listener) SetTag(tag any) {
	l.tag = tag
}

func (l *Listener) interest() int {
	if l.closed {
		return 0
	}
	return sockfd.EventRead
}

func (l *Listener) pollFD() int {
	if l.closed {
		return -1
	}
	return l.sock.FD()
}
