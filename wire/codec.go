// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// frameHeaderLength is the fixed size of a frame header: 4 bytes
// payload length, big-endian uint32.
const frameHeaderLength = 4

// MaxFrameSize is the maximum allowed payload size. Control frames are
// small; 1 MB leaves room for future fields without letting a corrupt
// length prefix drive a huge allocation.
const MaxFrameSize = 1 * 1024 * 1024

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical frame always
// produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// Serialize encodes frame into its full wire representation:
// [4 bytes payload length, big-endian uint32] [CBOR payload].
// The deterministic encoding makes the result byte-for-byte stable for
// a given frame.
func Serialize(frame Frame) ([]byte, error) {
	payload, err := encMode.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame payload: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("frame payload %d bytes exceeds maximum %d", len(payload), MaxFrameSize)
	}
	wireBytes := make([]byte, frameHeaderLength+len(payload))
	binary.BigEndian.PutUint32(wireBytes[:frameHeaderLength], uint32(len(payload)))
	copy(wireBytes[frameHeaderLength:], payload)
	return wireBytes, nil
}

// WriteFrame serializes frame and writes it to w.
func WriteFrame(w io.Writer, frame Frame) error {
	wireBytes, err := Serialize(frame)
	if err != nil {
		return err
	}
	if _, err := w.Write(wireBytes); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one framed message from r. Returns an error if the
// stream is malformed, truncated, or the payload exceeds MaxFrameSize.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	payloadLength := binary.BigEndian.Uint32(header[:])
	if payloadLength == 0 {
		return Frame{}, fmt.Errorf("zero-length frame payload")
	}
	if payloadLength > MaxFrameSize {
		return Frame{}, fmt.Errorf("frame payload %d bytes exceeds maximum %d", payloadLength, MaxFrameSize)
	}
	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("read frame payload: %w", err)
	}
	var frame Frame
	if err := decMode.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame payload: %w", err)
	}
	return frame, nil
}
