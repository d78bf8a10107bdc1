// File: mq/drive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Drive pumps one connection as far as the OS allows without blocking.
// Partial transfers record their offsets and resume on the next call;
// nothing here ever waits.

package mq

import (
	"errors"
	"fmt"
	"io"
	"math"
	"syscall"

	"github.com/momentics/hioload-mq/api"
)

// Drive advances the connection state machine: it completes an in-flight
// handshake, flushes queued outbound messages, and pumps inbound bytes
// into the armed sink. It reports the most significant completion of
// this call: EventReceived when an inbound message finished (drain it
// with Recv), otherwise EventSent when at least one outbound message
// finished, otherwise EventNone. A dead connection reports EventClosed
// together with the terminal error.
func (c *Conn) Drive() (api.Event, error) {
	switch c.state {
	case api.StateClosed:
		return api.EventClosed, c.terminalErr()
	case api.StateConnecting:
		done, err := c.sock.ConnectDone()
		if err != nil {
			return api.EventClosed, c.fail(api.NewError(api.ErrCodeConnect, "handshake").WithCause(err))
		}
		if !done {
			return api.EventNone, nil
		}
		c.state = api.StateConnected
	}

	sent, err := c.pumpWrites()
	if err != nil {
		return api.EventClosed, c.fail(err)
	}
	received, err := c.pumpReads()
	if err != nil {
		return api.EventClosed, c.fail(err)
	}
	switch {
	case received:
		return api.EventReceived, nil
	case sent > 0:
		return api.EventSent, nil
	}
	return api.EventNone, nil
}

// fail transitions to Closed recording err as the terminal error. A
// completed-but-undrained inbound message survives so Recv can still
// hand it to the caller.
func (c *Conn) fail(err error) error {
	if c.state == api.StateClosed {
		return c.terminalErr()
	}
	c.err = err
	c.state = api.StateClosed
	c.discardPending()
	c.sock.Close()
	return err
}

// pumpWrites flushes the outbound queue head-first until the socket
// stops accepting bytes or the queue empties, returning how many
// messages finished in this call.
func (c *Conn) pumpWrites() (int, error) {
	completed := 0
	for c.sendq.Length() > 0 {
		m := c.sendq.Peek().(*outMsg)
		if err := c.flushMsg(m); err != nil {
			return completed, err
		}
		if !m.done() {
			break
		}
		c.sendq.Remove()
		c.stats.MsgsSent++
		completed++
	}
	return completed, nil
}

// flushMsg writes as much of one message as the socket accepts: header
// first, then payload from the memory or file source. A short write
// records its offset and returns cleanly; the next call resumes there.
func (c *Conn) flushMsg(m *outMsg) error {
	for !m.headerDone() {
		n, err := c.sock.Write(m.hdr[m.hdrOff:])
		if errors.Is(err, api.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return classify(err)
		}
		m.hdrOff += n
		c.stats.BytesSent += uint64(n)
	}
	switch src := m.src.(type) {
	case *memSource:
		return c.flushMem(m, src)
	case *fileSource:
		return c.flushFile(m, src)
	}
	return nil
}

func (c *Conn) flushMem(m *outMsg, src *memSource) error {
	for m.sent < m.length {
		n, err := c.sock.Write(src.data[m.sent:])
		if errors.Is(err, api.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return classify(err)
		}
		m.sent += int64(n)
		c.stats.BytesSent += uint64(n)
	}
	return nil
}

// flushFile streams file payload through sendfile(2) when the kernel
// accepts it, falling back to positional reads through a pooled chunk
// otherwise. Progress advances only by bytes the socket took, so a
// partial transfer resumes against stable file offsets.
func (c *Conn) flushFile(m *outMsg, src *fileSource) error {
	for m.sent < m.length {
		n := chunkCap(m.length-m.sent, c.cfg.ChunkSize)
		var written int
		var err error
		if m.noSendfile {
			written, err = c.copyFileChunk(m, src, n)
		} else {
			written, err = c.sock.Sendfile(src.f, src.off+m.sent, n)
			if errors.Is(err, api.ErrNotSupported) {
				m.noSendfile = true
				continue
			}
		}
		if errors.Is(err, api.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return classify(err)
		}
		if written == 0 {
			return api.NewError(api.ErrCodeInternal, "file source truncated mid-send").
				WithContext("file", src.f.Name())
		}
		m.sent += int64(written)
		c.stats.BytesSent += uint64(written)
	}
	return nil
}

// copyFileChunk moves up to n payload bytes through a pooled scratch
// buffer: positional read from the source, then one socket write. Bytes
// read but not written are simply read again next time.
func (c *Conn) copyFileChunk(m *outMsg, src *fileSource, n int) (int, error) {
	chunk := c.chunks.GetBuffer()
	defer c.chunks.PutBuffer(chunk)
	if n > len(chunk) {
		n = len(chunk)
	}
	k, err := src.f.ReadAt(chunk[:n], src.off+m.sent)
	if k == 0 {
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("read source file: %w", err)
		}
		// Premature EOF: the file shrank after enqueue. The caller
		// broke the no-mutation contract; report via the zero return.
		return 0, nil
	}
	return c.sock.Write(chunk[:k])
}

// pumpReads advances the inbound operation: reassemble the header, then
// stream payload into the armed sink. Reads never cross the current
// message boundary. Reports true when a message completed in this call.
func (c *Conn) pumpReads() (bool, error) {
	if !c.in.headerDone() {
		for c.in.hdrGot < hdrSize {
			n, err := c.sock.Read(c.in.hdrBuf[c.in.hdrGot:])
			if errors.Is(err, api.ErrWouldBlock) {
				return false, nil
			}
			if err != nil {
				return false, classify(err)
			}
			c.in.hdrGot += n
			c.stats.BytesRecv += uint64(n)
		}
		length, err := parseHeader(c.in.hdrBuf[:])
		if err != nil {
			return false, err
		}
		// Announced lengths beyond int64 are rejected even with no
		// configured cap: they cannot be represented as a byte count.
		limit := uint64(math.MaxInt64)
		if c.cfg.MaxMsgSize > 0 {
			limit = uint64(c.cfg.MaxMsgSize)
		}
		if length > limit {
			return false, api.NewError(api.ErrCodeMsgTooBig, "inbound message").
				WithContext("length", length).
				WithContext("limit", limit)
		}
		c.in.length = int64(length)
	}

	// Payload consumption stalls here until the caller arms a sink; this
	// is what lets the receiver pick memory vs file per message.
	// interest() drops read readiness meanwhile so a poll does not spin.
	if c.in.sink == nil {
		return false, nil
	}

	for c.in.got < c.in.length {
		chunk := c.chunks.GetBuffer()
		n := chunkCap(c.in.length-c.in.got, len(chunk))
		k, err := c.sock.Read(chunk[:n])
		if errors.Is(err, api.ErrWouldBlock) {
			c.chunks.PutBuffer(chunk)
			return false, nil
		}
		if err != nil {
			c.chunks.PutBuffer(chunk)
			return false, classify(err)
		}
		werr := c.in.sink.write(chunk[:k])
		c.chunks.PutBuffer(chunk)
		if werr != nil {
			return false, werr
		}
		c.in.got += int64(k)
		c.stats.BytesRecv += uint64(k)
	}

	c.done = &recvEvent{kind: c.in.sink.kind(), size: c.in.length}
	c.in.reset()
	c.stats.MsgsRecv++
	return true, nil
}

// chunkCap clamps the remaining byte count of a transfer to one chunk.
func chunkCap(remaining int64, chunkSize int) int {
	if remaining < int64(chunkSize) {
		return int(remaining)
	}
	return chunkSize
}

// classify maps descriptor-level read/write failures onto the error
// taxonomy: end-of-file and reset-style errnos become ErrConnClosed,
// anything else passes through for diagnostics.
func classify(err error) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return api.NewError(api.ErrCodeConnClosed, "peer closed connection").WithCause(err)
	}
	return err
}
