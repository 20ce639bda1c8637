package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	seq := NewSequencer()
	e, err := New(TypeCommand, "example-worker", "inst-1", 1, CommandPayload{
		Verb: "health_check",
	})
	require.NoError(t, err)
	seq.Stamp(e)

	wire, err := Encode(e)
	require.NoError(t, err)

	decoded, err := Decode(wire, 0)
	require.NoError(t, err)

	require.Equal(t, e.SchemaVersion, decoded.SchemaVersion)
	require.Equal(t, e.Type, decoded.Type)
	require.Equal(t, e.Worker, decoded.Worker)
	require.Equal(t, e.InstanceID, decoded.InstanceID)
	require.Equal(t, e.Generation, decoded.Generation)
	require.Equal(t, e.Sequence, decoded.Sequence)
	require.Equal(t, e.Timestamp, decoded.Timestamp)
	require.JSONEq(t, string(e.Payload), string(decoded.Payload))

	cmd, err := decoded.Command()
	require.NoError(t, err)
	require.Equal(t, "health_check", cmd.Verb)
}

func TestDecodeRejectsSchemaMismatch(t *testing.T) {
	e, err := New(TypeHeartbeat, "w", "i1", 1, HeartbeatPayload{UptimeSec: 1})
	require.NoError(t, err)
	NewSequencer().Stamp(e)
	e.SchemaVersion = "vj.v0"

	wire, err := Encode(e)
	require.NoError(t, err)

	_, err = Decode(wire, 0)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "vj.v0", schemaErr.Got)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte("{not json"), 0)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeRejectsMissingVerb(t *testing.T) {
	e, err := New(TypeCommand, "w", "i1", 1, CommandPayload{})
	require.NoError(t, err)
	NewSequencer().Stamp(e)
	wire, err := Encode(e)
	require.NoError(t, err)

	_, err = Decode(wire, 0)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeEnforcesMonotonicSequence(t *testing.T) {
	seq := NewSequencer()
	e1, _ := New(TypeHeartbeat, "w", "i1", 1, HeartbeatPayload{})
	seq.Stamp(e1)
	wire1, _ := Encode(e1)
	decoded1, err := Decode(wire1, 0)
	require.NoError(t, err)

	e2, _ := New(TypeHeartbeat, "w", "i1", 1, HeartbeatPayload{})
	seq.Stamp(e2)
	wire2, _ := Encode(e2)
	decoded2, err := Decode(wire2, decoded1.Sequence)
	require.NoError(t, err)
	require.Greater(t, decoded2.Sequence, decoded1.Sequence)

	// Replaying wire1 against the new watermark must be rejected.
	_, err = Decode(wire1, decoded2.Sequence)
	var nonMono *NonMonotonicError
	require.ErrorAs(t, err, &nonMono)
}

func TestSequencerStrictlyIncreases(t *testing.T) {
	seq := NewSequencer()
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		next := seq.Next()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestAckStatusValidation(t *testing.T) {
	e, err := New(TypeAck, "w", "i1", 1, AckPayload{Status: "bogus"})
	require.NoError(t, err)
	NewSequencer().Stamp(e)
	wire, err := Encode(e)
	require.NoError(t, err)

	_, err = Decode(wire, 0)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
}
