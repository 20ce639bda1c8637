/*
Package envelope defines the single message format that crosses every
channel of the VJ Bus: command, ack, telemetry, event, and heartbeat.

An Envelope is self-describing: its SchemaVersion is checked on Decode,
its Type selects which concrete payload struct applies, and its
(Worker, InstanceID, Sequence) triple is unique and strictly monotonic
per worker instance. Callers never set Sequence themselves — a Sequencer,
owned by the Worker Runtime, assigns it on send.

Decode never panics on hostile input. It returns a typed *SchemaError for
a version mismatch, a typed *NonMonotonicError when the sequence does not
advance past the caller's watermark, and a typed *MalformedError for
anything else wrong with the bytes, so callers can log-and-drop without a
recover().
*/
package envelope
