// Package mq
// Author: momentics <momentics@gmail.com>
//
// Message-oriented non-blocking transport over TCP and AF_VSOCK stream
// sockets. Peers exchange discrete length-delimited messages whose payload
// moves between memory buffers and file descriptors without ever
// materializing a full message in transit. All I/O is cooperative: the
// caller pumps each connection with Drive and blocks only inside Wait or
// Poll.Wait.
//
// See conn.go for the connection state machine, listener.go for the accept
// side, and poll.go for the readiness multiplexer.
package mq
