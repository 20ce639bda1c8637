// Package osc implements the subset of OSC 1.0 needed for bit-exact
// compatibility with the legacy /audio/* bundle and the individual single-
// value addresses that older VJ visuals still subscribe to directly.
// No OSC library appears anywhere in the retrieved example pack, so this
// wire encoder is hand-rolled against the OSC 1.0 spec using encoding/binary.
package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Message is a single OSC address plus its float32 arguments. The legacy
// bridge only ever sends float32 ('f') arguments.
type Message struct {
	Address string
	Args    []float32
}

// Encode serializes m to the OSC 1.0 wire format: a 4-byte-aligned,
// NUL-padded address string, a 4-byte-aligned, NUL-padded type tag string
// prefixed with ',', then each argument as a big-endian float32.
func (m Message) Encode() ([]byte, error) {
	if m.Address == "" || m.Address[0] != '/' {
		return nil, fmt.Errorf("osc: address must start with '/': %q", m.Address)
	}

	var buf bytes.Buffer
	writePaddedString(&buf, m.Address)

	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for range m.Args {
		tags = append(tags, 'f')
	}
	writePaddedString(&buf, string(tags))

	for _, arg := range m.Args {
		if err := binary.Write(&buf, binary.BigEndian, arg); err != nil {
			return nil, fmt.Errorf("osc: encode argument: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// writePaddedString writes s NUL-terminated and padded with additional NUL
// bytes so the total length (including the first terminator) is a multiple
// of 4, per the OSC 1.0 string encoding rule.
func writePaddedString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

// Bundle groups multiple messages under the OSC 1.0 "#bundle" envelope
// with an immediate-execution timetag, matching how the legacy visualizer
// expects /audio/* bundles to arrive.
type Bundle struct {
	Messages []Message
}

// immediateTag is the OSC "execute immediately" timetag: all bits zero
// except the low bit, per the OSC 1.0 spec.
var immediateTag = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

// Encode serializes the bundle: "#bundle" header, an immediate timetag,
// then each message prefixed with its int32 byte length.
func (b Bundle) Encode() ([]byte, error) {
	var buf bytes.Buffer
	writePaddedString(&buf, "#bundle")
	buf.Write(immediateTag[:])

	for _, msg := range b.Messages {
		encoded, err := msg.Encode()
		if err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, int32(len(encoded))); err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	return buf.Bytes(), nil
}
