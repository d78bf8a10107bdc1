// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

// ConnState enumerates the lifecycle state of a message connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MsgKind reports where a completed inbound message was materialized.
// The kind reflects the sink the receiver armed, never how the sender
// produced the payload.
type MsgKind int

const (
	MsgNone MsgKind = iota
	MsgBuffer
	MsgFD
)

func (k MsgKind) String() string {
	switch k {
	case MsgNone:
		return "none"
	case MsgBuffer:
		return "buffer"
	case MsgFD:
		return "fd"
	default:
		return "unknown"
	}
}

// Event is the outcome of one Drive step on a connection.
type Event int

const (
	// EventNone: no forward progress was possible without blocking.
	EventNone Event = iota
	// EventSent: the head of the outbound queue was fully written.
	EventSent
	// EventReceived: an inbound message completed into its armed sink.
	EventReceived
	// EventClosed: the connection reached its terminal state.
	EventClosed
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventSent:
		return "sent"
	case EventReceived:
		return "received"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnStats provides a standard layout for per-connection accounting.
// Counters follow the single-owner threading model of the transport:
// they are maintained without atomics and must be read by the goroutine
// that drives the connection.
type ConnStats struct {
	MsgsSent     uint64
	MsgsRecv     uint64
	BytesSent    uint64 // payload and header bytes written
	BytesRecv    uint64 // payload and header bytes read
	SendQueueLen int    // outbound messages not yet fully written
}
