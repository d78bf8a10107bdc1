// File: internal/sockfd/sockfd.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral declarations shared by the per-OS implementations.

package sockfd

// Readiness event bits reported by WaitFD and Epoll.Wait and accepted as
// interest masks. They translate to the OS poller's native flags.
const (
	EventRead  = 1 << 0
	EventWrite = 1 << 1
	EventErr   = 1 << 2
)

// Socket owns one stream socket descriptor in non-blocking mode.
// The zero value is not usable; construct through DialInet, DialVsock,
// ListenInet, ListenVsock or Accept.
type Socket struct {
	fd int
}

// FD exposes the raw descriptor for readiness registration.
func (s *Socket) FD() int {
	return s.fd
}

// Readiness pairs a descriptor with the events observed on it.
type Readiness struct {
	FD     int
	Events int
}
