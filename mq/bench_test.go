// File: mq/bench_test.go
// Author: momentics <momentics@gmail.com>
//
// Scripted-socket benchmarks for the send and receive pumps. No real
// sockets are involved, so the numbers isolate framing and copy costs.

package mq

import (
	"bytes"
	"testing"
)

func BenchmarkSendDrive(b *testing.B) {
	s := newMockSock()
	c := newMockConn(s)
	payload := bytes.Repeat([]byte("x"), 4096)
	b.SetBytes(int64(hdrSize + len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.SendBytes(payload); err != nil {
			b.Fatal(err)
		}
		if _, err := c.Drive(); err != nil {
			b.Fatal(err)
		}
		s.wr.Reset()
	}
}

func BenchmarkReceiveDrive(b *testing.B) {
	payload := bytes.Repeat([]byte("y"), 4096)
	wire := frame(payload)
	s := newMockSock()
	c := newMockConn(s)
	var dst bytes.Buffer
	b.SetBytes(int64(len(wire)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.feed(wire)
		if err := c.StoreBuffer(&dst); err != nil {
			b.Fatal(err)
		}
		if _, err := c.Drive(); err != nil {
			b.Fatal(err)
		}
		if _, _, err := c.Recv(); err != nil {
			b.Fatal(err)
		}
	}
}
