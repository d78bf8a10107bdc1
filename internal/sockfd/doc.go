// File: internal/sockfd/doc.go
// Package sockfd
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw non-blocking socket primitives for hioload-mq. Every syscall the
// transport performs lives here: socket creation, non-blocking connect,
// bind/listen/accept4, read/write with EAGAIN mapping, sendfile,
// SO_ERROR draining, poll(2) single-descriptor waits and the epoll
// registry used by the multiplexer. Platform separation follows strict
// build tags: *_linux.go carries the real implementation, sockfd_stub.go
// keeps the package compiling elsewhere and reports api.ErrNotSupported.

package sockfd
