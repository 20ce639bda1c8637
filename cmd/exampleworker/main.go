// Command exampleworker is a minimal bus worker used to validate the
// runtime end to end: it answers health checks, hot-reloads its
// publish_interval from a set_config command without restarting, and
// publishes an incrementing counter on its telemetry stream so a client
// can verify a restart resubscribes cleanly.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abossard/vjbus/pkg/log"
	"github.com/abossard/vjbus/pkg/workerrt"
)

const defaultPublishInterval = time.Second

func main() {
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	workerName := envOr("VJ_WORKER_NAME", "example-worker")
	stateDir := envOr("VJ_STATE_DIR", "/var/lib/vjbus")
	generation := parseGeneration(os.Getenv("VJ_GENERATION"))

	rt, err := workerrt.New(workerrt.Config{
		Worker:        workerName,
		StateDir:      stateDir,
		CommandAddr:   "127.0.0.1:0",
		EventAddr:     "127.0.0.1:0",
		TelemetryAddr: "127.0.0.1:0",
		InitialConfig: map[string]interface{}{
			"publish_interval_ms": defaultPublishInterval.Milliseconds(),
		},
	}, generation)
	if err != nil {
		log.Fatal("exampleworker: worker runtime: " + err.Error())
	}

	cmdAddr, err := rt.BindCommandServer("127.0.0.1:0", nil)
	if err != nil {
		log.Fatal("exampleworker: bind command server: " + err.Error())
	}
	evtAddr, err := rt.BindEventServer("127.0.0.1:0")
	if err != nil {
		log.Fatal("exampleworker: bind event server: " + err.Error())
	}
	if err := rt.Register(os.Getpid(), cmdAddr, evtAddr, rt.Telemetry().LocalAddr()); err != nil {
		log.Fatal("exampleworker: register: " + err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.RunHeartbeat(ctx)
	go publishCounter(ctx, rt)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("exampleworker: shutting down")
	_ = rt.Drain()
	_ = rt.Stop()
}

// publishCounter emits an incrementing value on the "counter" telemetry
// stream at an interval read fresh from the runtime config on every tick,
// so a set_config publish_interval_ms update takes effect on the next
// publish without restarting the process.
func publishCounter(ctx context.Context, rt *workerrt.Runtime) {
	count := 0
	interval := defaultPublishInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			count++
			rt.PublishTelemetry("counter", map[string]interface{}{"value": count})
			interval = currentPublishInterval(rt, interval)
			timer.Reset(interval)
		}
	}
}

func currentPublishInterval(rt *workerrt.Runtime, fallback time.Duration) time.Duration {
	cfg := rt.Config()
	raw, ok := cfg["publish_interval_ms"]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	default:
		return fallback
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseGeneration(s string) uint64 {
	if s == "" {
		return 1
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 1
	}
	return n
}
