//go:build !linux
// +build !linux

// File: internal/sockfd/sockfd_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package sockfd

import (
	"os"

	"github.com/momentics/hioload-mq/api"
)

func DialInet(host string, port int, nodelay bool) (*Socket, bool, error) {
	return nil, false, api.ErrNotSupported
}

func DialVsock(cid, port uint32) (*Socket, bool, error) {
	return nil, false, api.ErrNotSupported
}

func ListenInet(host string, port, backlog int) (*Socket, error) {
	return nil, api.ErrNotSupported
}

func ListenVsock(cid, port uint32, backlog int) (*Socket, error) {
	return nil, api.ErrNotSupported
}

func (s *Socket) Accept(nodelay bool) (*Socket, error) { return nil, api.ErrNotSupported }

func (s *Socket) Read(p []byte) (int, error) { return 0, api.ErrNotSupported }

func (s *Socket) Write(p []byte) (int, error) { return 0, api.ErrNotSupported }

func (s *Socket) Sendfile(src *os.File, off int64, n int) (int, error) {
	return 0, api.ErrNotSupported
}

func (s *Socket) ConnectDone() (bool, error) { return false, api.ErrNotSupported }

func (s *Socket) LocalAddr() string { return "" }

func (s *Socket) RemoteAddr() string { return "" }

func (s *Socket) Close() error { return nil }

func WaitFD(fd int, events int, timeoutMs int) (int, error) {
	return 0, api.ErrNotSupported
}

// Epoll is unavailable off Linux.
type Epoll struct{}

func NewEpoll() (*Epoll, error) { return nil, api.ErrNotSupported }

func (e *Epoll) Add(fd, events int) error { return api.ErrNotSupported }

func (e *Epoll) Mod(fd, events int) error { return api.ErrNotSupported }

func (e *Epoll) Del(fd int) error { return api.ErrNotSupported }

func (e *Epoll) Wait(out []Readiness, timeoutMs int) (int, error) {
	return 0, api.ErrNotSupported
}

func (e *Epoll) Close() error { return nil }
