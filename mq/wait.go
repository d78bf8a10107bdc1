// File: mq/wait.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-connection readiness waits. Deadlines are absolute: repeated
// waits against one deadline tighten as the clock advances instead of
// drifting, a deadline already behind the clock degrades to an immediate
// poll, and the zero time blocks indefinitely.

package mq

import (
	"time"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/internal/sockfd"
)

// Wait blocks until the connection is ready for the work it has pending
// (writability while connecting or flushing, readability while inbound
// bytes are wanted) or the deadline passes. It reports true when ready
// and false on timeout. A closed connection is immediately ready: Drive
// will report EventClosed.
func (c *Conn) Wait(deadline time.Time) (bool, error) {
	if c.state == api.StateClosed {
		return true, nil
	}
	return waitReady(c.sock.FD(), c.interest(), deadline)
}

// Wait blocks until a client is pending accept or the deadline passes.
func (l *Listener) Wait(deadline time.Time) (bool, error) {
	if l.closed {
		return true, nil
	}
	return waitReady(l.sock.FD(), sockfd.EventRead, deadline)
}

// waitReady polls one descriptor against an absolute deadline. Each
// wakeup re-derives the remaining time from the deadline, so interrupted
// waits never stretch the total. With an empty interest mask it still
// wakes on descriptor errors.
func waitReady(fd, events int, deadline time.Time) (bool, error) {
	for {
		n, err := sockfd.WaitFD(fd, events, pollTimeout(deadline))
		if err != nil {
			return false, err
		}
		if n != 0 {
			return true, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false, nil
		}
	}
}

// pollTimeout converts an absolute deadline into a poll(2) timeout in
// milliseconds: -1 blocks, 0 polls once, and sub-millisecond remainders
// round up so a live deadline never spins.
func pollTimeout(deadline time.Time) int {
	if deadline.IsZero() {
		return -1
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	ms := int(remaining.Milliseconds())
	if ms == 0 {
		ms = 1
	}
	return ms
}
