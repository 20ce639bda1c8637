package osc

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeMessageNoArgs(t *testing.T) {
	data, err := Message{Address: "/beat"}.Encode()
	require.NoError(t, err)
	require.Equal(t, 0, len(data)%4)
	require.Equal(t, []byte("/beat\x00\x00\x00"), data[:8])
	require.Equal(t, []byte(",\x00\x00\x00"), data[8:12])
	require.Len(t, data, 12)
}

func TestEncodeMessageOneFloatArg(t *testing.T) {
	data, err := Message{Address: "/bpm", Args: []float32{128.5}}.Encode()
	require.NoError(t, err)

	// "/bpm" is 4 bytes, NUL terminator pads to 8 total.
	require.Equal(t, []byte("/bpm\x00\x00\x00\x00"), data[:8])
	require.Equal(t, []byte(",f\x00\x00"), data[8:12])

	bits := binary.BigEndian.Uint32(data[12:16])
	require.Equal(t, float32(128.5), math.Float32frombits(bits))
	require.Len(t, data, 16)
}

func TestEncodeRejectsAddressWithoutLeadingSlash(t *testing.T) {
	_, err := Message{Address: "beat"}.Encode()
	require.Error(t, err)
}

func TestEncodeBundleWrapsEachMessageWithLengthPrefix(t *testing.T) {
	bundle := Bundle{Messages: []Message{
		{Address: "/energy", Args: []float32{0.5}},
		{Address: "/brightness", Args: []float32{0.25}},
	}}
	data, err := bundle.Encode()
	require.NoError(t, err)

	require.Equal(t, []byte("#bundle\x00"), data[:8])
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, data[8:16])

	firstLen := int32(binary.BigEndian.Uint32(data[16:20]))
	firstMsg, err := (Message{Address: "/energy", Args: []float32{0.5}}).Encode()
	require.NoError(t, err)
	require.Equal(t, int32(len(firstMsg)), firstLen)
	require.Equal(t, firstMsg, data[20:20+firstLen])
}

func TestEncodeMultiArgMessageUsesAllFloatTags(t *testing.T) {
	data, err := Message{Address: "/audio/levels", Args: []float32{1, 2, 3}}.Encode()
	require.NoError(t, err)

	// "/audio/levels" is 13 bytes -> pad to 16 with NUL terminator.
	require.Len(t, data[:16], 16)
	tagStart := 16
	require.Equal(t, byte(','), data[tagStart])
	require.Equal(t, []byte("fff"), data[tagStart+1:tagStart+4])
}
