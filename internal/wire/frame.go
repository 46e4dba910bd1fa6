// Package wire implements the length-prefixed framing protocol: a
// big-endian uint32 length followed by exactly that many payload bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// MaxPayloadSize caps a single frame's payload.
const MaxPayloadSize = 1 * 1024 * 1024

// ErrOversizeFrame is returned when a declared length exceeds MaxPayloadSize.
var ErrOversizeFrame = errors.New("wire: declared frame length exceeds maximum payload size")

// ErrConnectionClosed signals an orderly peer close mid-frame.
var ErrConnectionClosed = errors.New("wire: connection closed by peer")

// ReadFrame reads one length-prefixed frame from conn, honoring deadline if
// non-zero. A declared length greater than MaxPayloadSize closes nothing
// itself (the caller is expected to close the connection on this error)
// but is reported so the caller can do so.
func ReadFrame(conn net.Conn, deadline time.Duration) ([]byte, error) {
	if deadline > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return nil, fmt.Errorf("wire: set read deadline: %w", err)
		}
	}

	var lenBuf [4]byte
	if err := readFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxPayloadSize {
		return nil, ErrOversizeFrame
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if err := readFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// readFull reads exactly len(buf) bytes, retrying partial reads, and maps a
// zero-byte read before completion to ErrConnectionClosed.
func readFull(conn net.Conn, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) && read == 0 {
				return ErrConnectionClosed
			}
			if errors.Is(err, io.EOF) {
				return ErrConnectionClosed
			}
			return err
		}
		if n == 0 {
			return ErrConnectionClosed
		}
	}
	return nil
}

// WriteFrame writes payload as one length-prefixed frame, retrying partial
// writes until all bytes leave or a socket error occurs.
func WriteFrame(conn net.Conn, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if err := writeFull(conn, lenBuf[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return writeFull(conn, payload)
}

func writeFull(conn net.Conn, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := conn.Write(buf[written:])
		written += n
		if err != nil {
			return err
		}
	}
	return nil
}
