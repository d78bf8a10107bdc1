// File: mq/sink.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sources supply outbound payload bytes; sinks receive inbound payload
// bytes. Each side is either a memory buffer or a file descriptor, chosen
// independently: the receiver's sink decides where bytes land regardless
// of how the sender produced them.

package mq

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/momentics/hioload-mq/api"
)

// source is the origin of one outbound message's payload.
type source interface {
	kind() api.MsgKind
}

// memSource serves payload bytes from a caller-owned slice. The caller
// must not mutate the slice until the message completes.
type memSource struct {
	data []byte
}

func (s *memSource) kind() api.MsgKind { return api.MsgBuffer }

// fileSource serves payload bytes from a caller-owned file. Reads are
// positional against the recorded start offset, so the file's own cursor
// never moves.
type fileSource struct {
	f   *os.File
	off int64
}

func (s *fileSource) kind() api.MsgKind { return api.MsgFD }

// sink is the destination of one inbound message's payload.
type sink interface {
	kind() api.MsgKind
	write(p []byte) error
}

// memSink appends into a caller-owned buffer.
type memSink struct {
	buf *bytes.Buffer
}

func (s *memSink) kind() api.MsgKind { return api.MsgBuffer }

func (s *memSink) write(p []byte) error {
	_, err := s.buf.Write(p)
	return err
}

// fileSink writes through to a caller-owned descriptor at its current
// offset.
type fileSink struct {
	f *os.File
}

func (s *fileSink) kind() api.MsgKind { return api.MsgFD }

func (s *fileSink) write(p []byte) error {
	if _, err := s.f.Write(p); err != nil {
		return fmt.Errorf("sink write: %w", err)
	}
	return nil
}

// fileRemaining measures how many payload bytes a queued file transfer
// will carry: everything between the file's current offset and its end,
// captured once at enqueue time.
func fileRemaining(f *os.File) (length, off int64, err error) {
	off, err = f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	length = st.Size() - off
	if length < 0 {
		length = 0
	}
	return length, off, nil
}
