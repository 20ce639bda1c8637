package workerrt

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
)

// EventServer exposes the event broker over HTTP Server-Sent Events: a
// reliable, connection-oriented, multi-subscriber broadcast. Each
// connection gets its own Subscription with the broker's high-watermark
// drop-oldest behavior applied per-connection.
type EventServer struct {
	rt     *Runtime
	router chi.Router
}

// NewEventServer builds the chi router for the event channel.
func NewEventServer(rt *Runtime) *EventServer {
	es := &EventServer{rt: rt}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/events", es.serveEvents)
	es.router = r
	return es
}

// Router exposes the chi router for embedding or testing.
func (es *EventServer) Router() chi.Router { return es.router }

// ListenAndServe binds addr and serves SSE connections until the listener
// is closed. Returns the bound address.
func (es *EventServer) ListenAndServe(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("workerrt: listen event channel: %w", err)
	}
	srv := &http.Server{Handler: es.router}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithInstance(es.rt.worker, es.rt.instanceID).Error().
				Str("err", err.Error()).Msg("event server stopped")
		}
	}()
	return ln.Addr().String(), nil
}

func (es *EventServer) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := es.rt.events.Subscribe()
	defer sub.Close()

	ctx := r.Context()
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			wire, err := envelope.Encode(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", wire)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
