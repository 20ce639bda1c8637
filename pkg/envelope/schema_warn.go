package envelope

import (
	"sync"

	"github.com/abossard/vjbus/pkg/log"
)

// schemaWarned tracks which (worker, got-schema-version) pairs have already
// produced a log line, so a stream of mismatched envelopes from a stale
// client logs once instead of flooding.
var schemaWarned sync.Map

// WarnOnce logs a SchemaError the first time a given (worker, schema
// version) pair is seen and silently drops it thereafter. Callers decode in
// a tight loop and should route every *SchemaError here instead of logging
// directly.
func WarnOnce(err *SchemaError) {
	key := err.Worker + "\x00" + err.Got
	if _, loaded := schemaWarned.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	log.WithWorker(err.Worker).Warn().
		Str("got_schema_version", err.Got).
		Str("want_schema_version", err.Want).
		Msg("dropping envelope: schema version mismatch")
}
