//go:build linux
// +build linux

// File: internal/sockfd/sockfd_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux implementation: non-blocking stream sockets over AF_INET,
// AF_INET6 and AF_VSOCK with readiness waits via poll(2).

package sockfd

import (
	"fmt"
	"io"
	"os"

	"github.com/momentics/hioload-mq/api"
	"golang.org/x/sys/unix"
)

const streamFlags = unix.SOCK_STREAM | unix.SOCK_NONBLOCK | unix.SOCK_CLOEXEC

// DialInet starts a non-blocking TCP connect. The returned bool is true
// when the handshake completed synchronously; otherwise completion must
// be observed through writability and ConnectDone.
func DialInet(host string, port int, nodelay bool) (*Socket, bool, error) {
	sa, family, err := resolveInet(host, port)
	if err != nil {
		return nil, false, err
	}
	fd, err := unix.Socket(family, streamFlags, unix.IPPROTO_TCP)
	if err != nil {
		return nil, false, fmt.Errorf("socket create: %w", err)
	}
	if nodelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	return finishDial(fd, sa)
}

// DialVsock starts a non-blocking AF_VSOCK connect to (cid, port).
func DialVsock(cid, port uint32) (*Socket, bool, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, streamFlags, 0)
	if err != nil {
		return nil, false, fmt.Errorf("vsock socket create: %w", err)
	}
	return finishDial(fd, &unix.SockaddrVM{CID: cid, Port: port})
}

func finishDial(fd int, sa unix.Sockaddr) (*Socket, bool, error) {
	switch err := unix.Connect(fd, sa); err {
	case nil:
		return &Socket{fd: fd}, true, nil
	case unix.EINPROGRESS, unix.EINTR:
		// An interrupted connect keeps completing asynchronously, same
		// as EINPROGRESS.
		return &Socket{fd: fd}, false, nil
	default:
		_ = unix.Close(fd)
		return nil, false, fmt.Errorf("connect: %w", err)
	}
}

// ListenInet binds a non-blocking TCP listening socket with SO_REUSEADDR.
func ListenInet(host string, port, backlog int) (*Socket, error) {
	sa, family, err := resolveInet(host, port)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, streamFlags, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return finishListen(fd, sa, backlog)
}

// ListenVsock binds a non-blocking AF_VSOCK listening socket.
func ListenVsock(cid, port uint32, backlog int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, streamFlags, 0)
	if err != nil {
		return nil, fmt.Errorf("vsock socket create: %w", err)
	}
	return finishListen(fd, &unix.SockaddrVM{CID: cid, Port: port}, backlog)
}

func finishListen(fd int, sa unix.Sockaddr, backlog int) (*Socket, error) {
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Socket{fd: fd}, nil
}

// Accept takes one pending client off a listening socket. The accepted
// descriptor inherits non-blocking mode through accept4. Returns
// api.ErrWouldBlock when no client is pending.
func (s *Socket) Accept(nodelay bool) (*Socket, error) {
	for {
		nfd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return nil, api.ErrWouldBlock
		case err != nil:
			return nil, fmt.Errorf("accept: %w", err)
		}
		if nodelay {
			// No-op on non-TCP families such as AF_VSOCK.
			_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		}
		return &Socket{fd: nfd}, nil
	}
}

// Read performs one non-blocking read. A drained socket yields
// api.ErrWouldBlock; a peer shutdown yields io.EOF.
func (s *Socket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("socket read: %w", err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

// Write performs one non-blocking write and reports how much the OS
// accepted. A full send buffer yields api.ErrWouldBlock.
func (s *Socket) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("socket write: %w", err)
		default:
			return n, nil
		}
	}
}

// Sendfile pushes up to n payload bytes from src (starting at off,
// without touching the file's own offset) straight to the socket.
// api.ErrNotSupported reports source/kernel combinations where the
// caller must fall back to a chunked copy loop.
func (s *Socket) Sendfile(src *os.File, off int64, n int) (int, error) {
	for {
		offset := off
		written, err := unix.Sendfile(s.fd, int(src.Fd()), &offset, n)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, api.ErrWouldBlock
		case err == unix.EINVAL || err == unix.ENOSYS:
			return 0, api.ErrNotSupported
		case err != nil:
			return 0, fmt.Errorf("sendfile: %w", err)
		default:
			return written, nil
		}
	}
}

// ConnectDone checks whether an in-progress connect has resolved. It does
// a zero-timeout writability probe and then drains SO_ERROR the way the
// handshake outcome is surfaced for non-blocking sockets.
func (s *Socket) ConnectDone() (bool, error) {
	rev, err := WaitFD(s.fd, EventWrite, 0)
	if err != nil {
		return false, err
	}
	if rev == 0 {
		return false, nil
	}
	soerr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if soerr != 0 {
		return false, fmt.Errorf("connect: %w", unix.Errno(soerr))
	}
	return true, nil
}

// LocalAddr reports the bound address, empty when unavailable.
func (s *Socket) LocalAddr() string {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return ""
	}
	return sockaddrString(sa)
}

// RemoteAddr reports the peer address, empty when unavailable.
func (s *Socket) RemoteAddr() string {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return ""
	}
	return sockaddrString(sa)
}

// Close releases the descriptor. Safe to call more than once.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}

// WaitFD blocks up to timeoutMs for the requested events on one
// descriptor. timeoutMs < 0 blocks indefinitely, 0 probes without
// blocking. Returns the observed event bits, 0 on timeout. An EINTR
// wakeup reports as 0 events so callers re-derive the remaining time
// from their absolute deadline.
func WaitFD(fd int, events int, timeoutMs int) (int, error) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: pollMask(events)}}
	n, err := unix.Poll(pfd, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	return readinessBits(pfd[0].Revents), nil
}

func pollMask(events int) int16 {
	var m int16
	if events&EventRead != 0 {
		m |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		m |= unix.POLLOUT
	}
	return m
}

func readinessBits(revents int16) int {
	var ev int
	if revents&(unix.POLLIN|unix.POLLPRI) != 0 {
		ev |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		ev |= EventWrite
	}
	if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		ev |= EventErr
	}
	return ev
}
