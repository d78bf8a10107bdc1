//go:build linux
// +build linux

// File: internal/sockfd/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Level-triggered epoll(7) registry backing the connection multiplexer.
// Level triggering is deliberate: the multiplexer only reports readiness
// and never drives members, so undrained readiness must keep reporting
// on subsequent waits.

package sockfd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Epoll wraps one epoll instance.
type Epoll struct {
	fd     int
	events []unix.EpollEvent
}

// NewEpoll creates an empty epoll registry.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &Epoll{fd: fd, events: make([]unix.EpollEvent, 64)}, nil
}

// Add registers fd with the given interest bits.
func (e *Epoll) Add(fd, events int) error {
	ev := unix.EpollEvent{Events: epollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Mod replaces the interest bits for a registered fd.
func (e *Epoll) Mod(fd, events int) error {
	ev := unix.EpollEvent{Events: epollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Del removes fd from the registry. Descriptors already closed by their
// owner were dropped by the kernel; that case reports clean.
func (e *Epoll) Del(fd int) error {
	err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == nil || err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return fmt.Errorf("epoll ctl del: %w", err)
}

// Wait fills out with observed readiness, returning the count. See WaitFD
// for timeout and EINTR conventions.
func (e *Epoll) Wait(out []Readiness, timeoutMs int) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	if len(e.events) < len(out) {
		e.events = make([]unix.EpollEvent, len(out))
	}
	n, err := unix.EpollWait(e.fd, e.events[:len(out)], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := e.events[i]
		var bits int
		if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			bits |= EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			bits |= EventWrite
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			bits |= EventErr
		}
		out[i] = Readiness{FD: int(ev.Fd), Events: bits}
	}
	return n, nil
}

// Close releases the epoll descriptor.
func (e *Epoll) Close() error {
	if e.fd < 0 {
		return nil
	}
	fd := e.fd
	e.fd = -1
	return unix.Close(fd)
}

func epollMask(events int) uint32 {
	var m uint32
	if events&EventRead != 0 {
		m |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}
