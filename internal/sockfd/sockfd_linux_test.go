// File: internal/sockfd/sockfd_linux_test.go
// Author: momentics <momentics@gmail.com>
//
// Loopback tests for the non-blocking socket layer.

package sockfd

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/momentics/hioload-mq/api"
)

func listenLoopback(t *testing.T) (*Socket, int) {
	t.Helper()
	ln, err := ListenInet("127.0.0.1", 0, 16)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	_, portStr, err := net.SplitHostPort(ln.LocalAddr())
	if err != nil {
		t.Fatalf("local addr %q: %v", ln.LocalAddr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}
	return ln, port
}

func dialLoopback(t *testing.T, port int) *Socket {
	t.Helper()
	sock, connected, err := DialInet("127.0.0.1", port, true)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { sock.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for !connected {
		if time.Now().After(deadline) {
			t.Fatal("connect did not finish")
		}
		if _, err := WaitFD(sock.FD(), EventWrite, 100); err != nil {
			t.Fatalf("wait: %v", err)
		}
		connected, err = sock.ConnectDone()
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	return sock
}

func acceptOne(t *testing.T, ln *Socket) *Socket {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := ln.Accept(true)
		if err == nil {
			t.Cleanup(func() { conn.Close() })
			return conn
		}
		if !errors.Is(err, api.ErrWouldBlock) {
			t.Fatalf("accept: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("accept timed out")
		}
		if _, err := WaitFD(ln.FD(), EventRead, 100); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
}

func loopbackPair(t *testing.T) (client, server *Socket) {
	t.Helper()
	ln, port := listenLoopback(t)
	client = dialLoopback(t, port)
	server = acceptOne(t, ln)
	return client, server
}

func readFull(t *testing.T, s *Socket, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n {
		if time.Now().After(deadline) {
			t.Fatalf("read timed out after %d of %d bytes", len(out), n)
		}
		k, err := s.Read(buf[:n-len(out)])
		if errors.Is(err, api.ErrWouldBlock) {
			if _, werr := WaitFD(s.FD(), EventRead, 100); werr != nil {
				t.Fatalf("wait: %v", werr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		out = append(out, buf[:k]...)
	}
	return out
}

func TestReadOnIdleSocketWouldBlock(t *testing.T) {
	_, server := loopbackPair(t)
	buf := make([]byte, 16)
	if _, err := server.Read(buf); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("read on idle socket: %v, want ErrWouldBlock", err)
	}
}

func TestAcceptOnIdleListenerWouldBlock(t *testing.T) {
	ln, _ := listenLoopback(t)
	if _, err := ln.Accept(true); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("accept on idle listener: %v, want ErrWouldBlock", err)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	client, server := loopbackPair(t)
	payload := []byte("test message")
	if n, err := client.Write(payload); err != nil || n != len(payload) {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	got := readFull(t, server, len(payload))
	if !bytes.Equal(got, payload) {
		t.Fatalf("read %q, want %q", got, payload)
	}
}

func TestReadAfterPeerClose(t *testing.T) {
	client, server := loopbackPair(t)
	client.Close()
	buf := make([]byte, 8)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := server.Read(buf)
		if errors.Is(err, io.EOF) {
			return
		}
		if errors.Is(err, api.ErrWouldBlock) {
			if time.Now().After(deadline) {
				t.Fatal("no EOF after peer close")
			}
			WaitFD(server.FD(), EventRead, 100)
			continue
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
}

func TestConnectRefused(t *testing.T) {
	ln, port := listenLoopback(t)
	ln.Close()
	sock, connected, err := DialInet("127.0.0.1", port, false)
	if err != nil {
		return
	}
	defer sock.Close()
	deadline := time.Now().Add(2 * time.Second)
	for !connected {
		if time.Now().After(deadline) {
			t.Fatal("connect neither finished nor failed")
		}
		if _, err := WaitFD(sock.FD(), EventWrite, 100); err != nil {
			t.Fatalf("wait: %v", err)
		}
		connected, err = sock.ConnectDone()
		if err != nil {
			return
		}
	}
	t.Fatal("connect to closed port succeeded")
}

func TestSendfileLoopback(t *testing.T) {
	client, server := loopbackPair(t)
	f, err := os.CreateTemp(t.TempDir(), "payload")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	defer f.Close()
	content := bytes.Repeat([]byte("0123456789abcdef"), 64)
	if _, err := f.Write(content); err != nil {
		t.Fatalf("fill file: %v", err)
	}
	sent := 0
	deadline := time.Now().Add(2 * time.Second)
	for sent < len(content) {
		if time.Now().After(deadline) {
			t.Fatalf("sendfile stalled at %d of %d bytes", sent, len(content))
		}
		n, err := client.Sendfile(f, int64(sent), len(content)-sent)
		if errors.Is(err, api.ErrWouldBlock) {
			WaitFD(client.FD(), EventWrite, 100)
			continue
		}
		if errors.Is(err, api.ErrNotSupported) {
			t.Skip("sendfile not supported here")
		}
		if err != nil {
			t.Fatalf("sendfile: %v", err)
		}
		sent += n
	}
	got := readFull(t, server, len(content))
	if !bytes.Equal(got, content) {
		t.Fatal("sendfile payload corrupted in transit")
	}
}

func TestEpollReportsReadiness(t *testing.T) {
	client, server := loopbackPair(t)
	ep, err := NewEpoll()
	if err != nil {
		t.Fatalf("epoll: %v", err)
	}
	defer ep.Close()
	if err := ep.Add(server.FD(), EventRead); err != nil {
		t.Fatalf("add: %v", err)
	}
	out := make([]Readiness, 4)
	n, err := ep.Wait(out, 0)
	if err != nil {
		t.Fatalf("idle wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("idle wait reported %d fds", n)
	}
	if _, err := client.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for n == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no readiness after write")
		}
		n, err = ep.Wait(out, 100)
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if out[0].FD != server.FD() || out[0].Events&EventRead == 0 {
		t.Fatalf("readiness = %+v, want read on fd %d", out[0], server.FD())
	}
	if err := ep.Del(server.FD()); err != nil {
		t.Fatalf("del: %v", err)
	}
}
