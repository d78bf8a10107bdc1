// File: mq/msg.go
// Package mq implements message framing and per-transfer bookkeeping.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire format: each message is a fixed 12-byte header followed by the
// payload. The header carries a 4-byte magic and the payload length as a
// big-endian 64-bit integer. Zero-length payloads are legal.

package mq

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/momentics/hioload-mq/api"
)

const (
	// hdrSize is the fixed wire header length.
	hdrSize  = 12
	magicLen = 4
)

// wireMagic guards against a peer speaking a different protocol.
var wireMagic = [magicLen]byte{'h', 'm', 'q', '1'}

// putHeader writes a message header for a payload of the given length.
func putHeader(dst []byte, length uint64) {
	copy(dst[:magicLen], wireMagic[:])
	binary.BigEndian.PutUint64(dst[magicLen:hdrSize], length)
}

// parseHeader validates the magic and extracts the payload length.
func parseHeader(src []byte) (uint64, error) {
	if len(src) < hdrSize {
		return 0, errors.New("message header too short")
	}
	if !bytes.Equal(src[:magicLen], wireMagic[:]) {
		return 0, api.NewError(api.ErrCodeBadMagic, "message header magic mismatch")
	}
	return binary.BigEndian.Uint64(src[magicLen:hdrSize]), nil
}

// outMsg is one queued outbound message. hdrOff and sent record partial
// progress so a short write resumes exactly where it stopped.
type outMsg struct {
	hdr        [hdrSize]byte
	hdrOff     int
	length     int64
	sent       int64
	src        source
	noSendfile bool // kernel refused sendfile for this transfer
}

func (m *outMsg) headerDone() bool { return m.hdrOff == hdrSize }

func (m *outMsg) done() bool { return m.headerDone() && m.sent == m.length }

// inOp is the single in-flight inbound operation. The header is
// reassembled across reads into hdrBuf; payload bytes stream straight
// into the armed sink without an intermediate full-message buffer.
type inOp struct {
	hdrBuf [hdrSize]byte
	hdrGot int
	length int64
	got    int64
	sink   sink
}

func (in *inOp) headerDone() bool { return in.hdrGot == hdrSize }

func (in *inOp) reset() {
	*in = inOp{}
}

// recvEvent records one completed inbound message until the caller
// drains it with Recv.
type recvEvent struct {
	kind api.MsgKind
	size int64
}
