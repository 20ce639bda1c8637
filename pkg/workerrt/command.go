package workerrt

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
)

// handlerBudget is the time a verb handler gets before the runtime gives up
// waiting inline and replies pending, expecting the handler to finish the
// work in the background and publish a follow-up event.
const handlerBudget = 200 * time.Millisecond

// Handler handles one command verb and returns the ack payload, or an error
// that becomes ack{status: error}.
type Handler func(req envelope.CommandPayload) (envelope.AckPayload, error)

// CommandServer is the command channel: a reliable, ordered, one-outstanding-
// request-per-client request/reply transport over local HTTP. Each worker
// binds exactly one CommandServer to a loopback address.
type CommandServer struct {
	rt       *Runtime
	handlers map[string]Handler
	router   chi.Router

	// dispatchMu serializes handler execution: only one verb runs at a time
	// for this worker, held for the handler's full lifetime (including the
	// time spent running in the background past handlerBudget), never just
	// around the HTTP request.
	dispatchMu sync.Mutex
}

// NewCommandServer builds the chi router and registers the standard verbs
// (health_check, get_state, set_config, register_telemetry_target, restart,
// shutdown) plus whatever domain verbs the caller supplies.
func NewCommandServer(rt *Runtime, domainHandlers map[string]Handler) *CommandServer {
	cs := &CommandServer{
		rt:       rt,
		handlers: make(map[string]Handler, len(domainHandlers)+8),
	}
	for verb, h := range domainHandlers {
		cs.handlers[verb] = h
	}
	cs.registerStandardVerbs()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Post("/command", cs.serveCommand)
	cs.router = r
	return cs
}

func (cs *CommandServer) registerStandardVerbs() {
	if _, ok := cs.handlers["health_check"]; !ok {
		cs.handlers["health_check"] = cs.rt.handleHealthCheck
	}
	if _, ok := cs.handlers["get_state"]; !ok {
		cs.handlers["get_state"] = cs.rt.handleGetState
	}
	if _, ok := cs.handlers["set_config"]; !ok {
		cs.handlers["set_config"] = cs.rt.handleSetConfig
	}
	if _, ok := cs.handlers["register_telemetry_target"]; !ok {
		cs.handlers["register_telemetry_target"] = cs.rt.handleRegisterTelemetryTarget
	}
	if _, ok := cs.handlers["restart"]; !ok {
		cs.handlers["restart"] = cs.rt.handleRestart
	}
	if _, ok := cs.handlers["shutdown"]; !ok {
		cs.handlers["shutdown"] = cs.rt.handleShutdown
	}
}

// ListenAndServe binds addr (normally 127.0.0.1:0 to let the OS pick a
// port) and serves until the listener is closed.
func (cs *CommandServer) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      cs.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

// Router exposes the chi router for embedding or testing with httptest.
func (cs *CommandServer) Router() chi.Router { return cs.router }

func (cs *CommandServer) serveCommand(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	env, err := envelope.Decode(body, 0)
	if err != nil {
		if schemaErr, ok := err.(*envelope.SchemaError); ok {
			envelope.WarnOnce(schemaErr)
		}
		http.Error(w, "decode envelope: "+err.Error(), http.StatusBadRequest)
		return
	}
	if env.Type != envelope.TypeCommand {
		http.Error(w, "expected command envelope", http.StatusBadRequest)
		return
	}

	cmd, err := env.Command()
	if err != nil {
		http.Error(w, "decode command payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	ack := cs.dispatch(cmd)

	ackEnv, err := envelope.New(envelope.TypeAck, cs.rt.worker, cs.rt.instanceID, cs.rt.generation, ack)
	if err != nil {
		http.Error(w, "build ack: "+err.Error(), http.StatusInternalServerError)
		return
	}
	cs.rt.seq.Stamp(ackEnv)

	wire, err := envelope.Encode(ackEnv)
	if err != nil {
		http.Error(w, "encode ack: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wire)
}

// dispatch runs the handler for cmd.Verb, enforcing the handler time budget:
// a handler that does not return within handlerBudget gets detached to run
// in the background, and the caller is told pending, with a follow-up event
// to arrive once it finishes. dispatchMu is held for the handler's entire
// run, fast or slow, so commands to this worker are strictly serialized —
// a set_config racing a restart can never interleave with another verb.
func (cs *CommandServer) dispatch(cmd envelope.CommandPayload) envelope.AckPayload {
	h, ok := cs.handlers[cmd.Verb]
	if !ok {
		return envelope.AckPayload{Status: envelope.AckError, Message: "unknown verb: " + cmd.Verb}
	}

	cs.dispatchMu.Lock()

	type result struct {
		ack envelope.AckPayload
		err error
	}
	done := make(chan result, 1)
	go func() {
		ack, err := h(cmd)
		done <- result{ack, err}
	}()

	select {
	case r := <-done:
		cs.dispatchMu.Unlock()
		if r.err != nil {
			return envelope.AckPayload{Status: envelope.AckError, Message: r.err.Error()}
		}
		return r.ack
	case <-time.After(handlerBudget):
		go func() {
			r := <-done
			cs.dispatchMu.Unlock()
			cs.publishHandlerCompletion(cmd.Verb, r.ack, r.err)
		}()
		log.WithInstance(cs.rt.worker, cs.rt.instanceID).Debug().
			Str("verb", cmd.Verb).Msg("handler exceeded budget, replying pending")
		return envelope.AckPayload{Status: envelope.AckPending, Message: "handler running in background"}
	}
}

func (cs *CommandServer) publishHandlerCompletion(verb string, ack envelope.AckPayload, err error) {
	level := envelope.LevelInfo
	msg := verb + " completed"
	data := map[string]interface{}{"verb": verb}
	if err != nil {
		level = envelope.LevelError
		msg = verb + " failed: " + err.Error()
	} else {
		data["result"] = ack.Result
	}
	cs.rt.PublishEvent(level, msg, data)
}

