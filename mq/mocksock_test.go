// File: mq/mocksock_test.go
// Author: momentics <momentics@gmail.com>
//
// Scripted in-memory socket for exercising the connection state machine
// without the OS. Tests control read fragmentation through feed and
// write backpressure through wrBudget.

package mq

import (
	"bytes"
	"io"
	"os"

	"github.com/momentics/hioload-mq/api"
)

type mockSock struct {
	rd        [][]byte // pending inbound fragments, consumed in order
	rdEOF     bool     // after rd drains, report io.EOF instead of ErrWouldBlock
	wr        bytes.Buffer
	wrBudget  int  // bytes Write accepts before ErrWouldBlock; -1 = unlimited
	sendfile  bool // serve Sendfile natively instead of ErrNotSupported
	connected bool
	connErr   error
	closed    bool
}

func newMockSock() *mockSock {
	return &mockSock{wrBudget: -1, connected: true}
}

// feed queues inbound bytes; each slice is served as its own read.
func (s *mockSock) feed(frags ...[]byte) {
	s.rd = append(s.rd, frags...)
}

func (s *mockSock) Read(p []byte) (int, error) {
	if len(s.rd) == 0 {
		if s.rdEOF {
			return 0, io.EOF
		}
		return 0, api.ErrWouldBlock
	}
	frag := s.rd[0]
	n := copy(p, frag)
	if n == len(frag) {
		s.rd = s.rd[1:]
	} else {
		s.rd[0] = frag[n:]
	}
	return n, nil
}

func (s *mockSock) Write(p []byte) (int, error) {
	if s.wrBudget == 0 {
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if s.wrBudget > 0 && n > s.wrBudget {
		n = s.wrBudget
	}
	s.wr.Write(p[:n])
	if s.wrBudget > 0 {
		s.wrBudget -= n
	}
	return n, nil
}

func (s *mockSock) Sendfile(src *os.File, off int64, n int) (int, error) {
	if !s.sendfile {
		return 0, api.ErrNotSupported
	}
	if s.wrBudget == 0 {
		return 0, api.ErrWouldBlock
	}
	if s.wrBudget > 0 && n > s.wrBudget {
		n = s.wrBudget
	}
	buf := make([]byte, n)
	k, err := src.ReadAt(buf, off)
	if k == 0 && err != nil && err != io.EOF {
		return 0, err
	}
	s.wr.Write(buf[:k])
	if s.wrBudget > 0 {
		s.wrBudget -= k
	}
	return k, nil
}

func (s *mockSock) ConnectDone() (bool, error) {
	if s.connErr != nil {
		return false, s.connErr
	}
	return s.connected, nil
}

func (s *mockSock) LocalAddr() string  { return "mock:local" }
func (s *mockSock) RemoteAddr() string { return "mock:remote" }

func (s *mockSock) Close() error {
	s.closed = true
	return nil
}

func (s *mockSock) FD() int { return 99 }

func newMockConn(s *mockSock, opts ...Option) *Conn {
	return newConn(s, applyOptions(opts), nil, api.StateConnected)
}

// frame returns the wire encoding of one message.
func frame(payload []byte) []byte {
	buf := make([]byte, hdrSize+len(payload))
	putHeader(buf, uint64(len(payload)))
	copy(buf[hdrSize:], payload)
	return buf
}
