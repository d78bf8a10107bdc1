// File: mq/poll.go
// Package mq: readiness multiplexer over registered connections.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll reports readiness and never drives its members. After Wait
// returns a positive count the caller walks Ready and pumps each member
// itself, keeping ordering and fairness decisions in application hands.

package mq

import (
	"time"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/internal/sockfd"
)

// Pollable is what Poll tracks: anything owning one descriptor with a
// current interest mask. *Conn and *Listener implement it.
type Pollable interface {
	pollFD() int
	interest() int
}

// pollEntry records what the kernel currently knows about one member.
type pollEntry struct {
	fd    int // descriptor registered with epoll, -1 when none
	mask  int // interest installed for that descriptor
	ready bool
}

// Poll multiplexes readiness across many connections and listeners. It
// never owns its members: they must outlive their registration, and
// Close releases only the registry. Like the connections it watches, a
// Poll belongs to a single goroutine.
type Poll struct {
	ep      *sockfd.Epoll
	members map[Pollable]*pollEntry
	events  []sockfd.Readiness
	fds     map[int]Pollable
	closed  bool
}

// NewPoll creates an empty registry.
func NewPoll() (*Poll, error) {
	ep, err := sockfd.NewEpoll()
	if err != nil {
		return nil, err
	}
	return &Poll{
		ep:      ep,
		members: make(map[Pollable]*pollEntry),
		fds:     make(map[int]Pollable),
	}, nil
}

// Add registers a member.
func (p *Poll) Add(m Pollable) error {
	if p.closed {
		return api.ErrPollClosed
	}
	if _, ok := p.members[m]; ok {
		return api.NewError(api.ErrCodeAlreadyRegistered, "poll member")
	}
	entry := &pollEntry{fd: -1}
	if fd := m.pollFD(); fd >= 0 {
		mask := m.interest()
		if err := p.ep.Add(fd, mask); err != nil {
			return err
		}
		entry.fd = fd
		entry.mask = mask
		p.fds[fd] = m
	}
	p.members[m] = entry
	return nil
}

// Remove unregisters a member.
func (p *Poll) Remove(m Pollable) error {
	if p.closed {
		return api.ErrPollClosed
	}
	entry, ok := p.members[m]
	if !ok {
		return api.NewError(api.ErrCodeNotRegistered, "poll member")
	}
	p.dropFD(m, entry)
	delete(p.members, m)
	return nil
}

// dropFD releases entry's descriptor registration. Once a member closes
// its socket the kernel may hand the same descriptor number to a newer
// member, so only the current owner may unregister it; a stale entry
// just forgets its number.
func (p *Poll) dropFD(m Pollable, entry *pollEntry) {
	if entry.fd >= 0 && p.fds[entry.fd] == m {
		p.ep.Del(entry.fd)
		delete(p.fds, entry.fd)
	}
	entry.fd = -1
}

// Wait blocks until at least one member is ready or the deadline passes,
// returning the number of ready members (0 on timeout). Interest masks
// are refreshed from each member's current state on entry. Members whose
// connection has reached its terminal state always count as ready so the
// caller notices and removes them.
func (p *Poll) Wait(deadline time.Time) (int, error) {
	if p.closed {
		return 0, api.ErrPollClosed
	}
	terminal := 0
	for m, entry := range p.members {
		entry.ready = false
		fd := m.pollFD()
		if fd < 0 {
			p.dropFD(m, entry)
			entry.ready = true
			terminal++
			continue
		}
		if mask := m.interest(); mask != entry.mask {
			if err := p.ep.Mod(fd, mask); err != nil {
				return 0, err
			}
			entry.mask = mask
		}
	}
	if terminal > 0 {
		// Terminal members are reported at once; a zero-timeout sweep
		// still collects any kernel readiness alongside them.
		n, err := p.sweep(0)
		if err != nil {
			return 0, err
		}
		return terminal + n, nil
	}
	for {
		n, err := p.sweep(pollTimeout(deadline))
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, nil
		}
	}
}

// sweep runs one epoll wait and marks ready members. The event buffer
// always has at least one slot so an empty registry still sleeps out its
// timeout in the kernel.
func (p *Poll) sweep(timeoutMs int) (int, error) {
	need := len(p.fds)
	if need < 1 {
		need = 1
	}
	if cap(p.events) < need {
		p.events = make([]sockfd.Readiness, need)
	}
	events := p.events[:cap(p.events)]
	n, err := p.ep.Wait(events, timeoutMs)
	if err != nil {
		return 0, err
	}
	ready := 0
	for i := 0; i < n; i++ {
		m, ok := p.fds[events[i].FD]
		if !ok {
			continue
		}
		if entry := p.members[m]; !entry.ready {
			entry.ready = true
			ready++
		}
	}
	return ready, nil
}

// Ready lists the members marked ready by the last Wait, for fan-in
// dispatch. Order is unspecified.
func (p *Poll) Ready() []Pollable {
	out := make([]Pollable, 0, len(p.members))
	for m, entry := range p.members {
		if entry.ready {
			out = append(out, m)
		}
	}
	return out
}

// Len reports the number of registered members.
func (p *Poll) Len() int {
	return len(p.members)
}

// Close releases the registry. Member connections stay open; they belong
// to the caller. Idempotent.
func (p *Poll) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.members = nil
	p.fds = nil
	return p.ep.Close()
}
