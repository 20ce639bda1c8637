// Command vjaudio is the Audio Analyzer worker: it captures from a real
// input device (or, with --synthetic, a deterministic tone generator for
// demos and smoke tests), extracts the bus's audio-reactive feature set,
// and publishes it as telemetry and over the legacy OSC bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abossard/vjbus/pkg/audio"
	"github.com/abossard/vjbus/pkg/log"
	"github.com/abossard/vjbus/pkg/osc"
	"github.com/abossard/vjbus/pkg/workerrt"
)

var (
	Version = "dev"

	synthetic     bool
	syntheticHz   float64
	deviceIndex   int
	preferredName string
	oscHost       string
	oscPort       int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "vjaudio",
	Short:   "Real-time audio feature extraction worker",
	Version: Version,
	RunE:    run,
}

func init() {
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	rootCmd.Flags().BoolVar(&synthetic, "synthetic", false, "use a synthetic tone generator instead of a real input device")
	rootCmd.Flags().Float64Var(&syntheticHz, "synthetic-hz", 220.0, "tone frequency for --synthetic")
	rootCmd.Flags().IntVar(&deviceIndex, "device-index", -1, "explicit capture device index (-1 for auto)")
	rootCmd.Flags().StringVar(&preferredName, "device-name", "", "substring match for a preferred capture device")
	rootCmd.Flags().StringVar(&oscHost, "osc-host", "127.0.0.1", "legacy OSC bridge target host")
	rootCmd.Flags().IntVar(&oscPort, "osc-port", 9000, "legacy OSC bridge target port")
}

func run(cmd *cobra.Command, _ []string) error {
	workerName := envOr("VJ_WORKER_NAME", "audio-analyzer")
	stateDir := envOr("VJ_STATE_DIR", "/var/lib/vjbus")
	generation := parseGeneration(os.Getenv("VJ_GENERATION"))

	cfg := audio.DefaultConfig()
	cfg.DeviceIndex = deviceIndex
	cfg.PreferredName = preferredName
	cfg.OSCHost = oscHost
	cfg.OSCPort = oscPort

	rt, err := workerrt.New(workerrt.Config{
		Worker:        workerName,
		StateDir:      stateDir,
		CommandAddr:   "127.0.0.1:0",
		EventAddr:     "127.0.0.1:0",
		TelemetryAddr: "127.0.0.1:0",
		InitialConfig: map[string]interface{}{
			"sample_rate": cfg.SampleRate,
			"block_size":  cfg.BlockSize,
			"osc_host":    cfg.OSCHost,
			"osc_port":    cfg.OSCPort,
		},
	}, generation)
	if err != nil {
		return fmt.Errorf("vjaudio: worker runtime: %w", err)
	}

	oscClient, err := osc.Dial(cfg.OSCHost, cfg.OSCPort)
	if err != nil {
		log.Warn("vjaudio: osc dial failed, running without legacy bridge: " + err.Error())
		oscClient = nil
	}

	source, err := buildSource()
	if err != nil {
		return fmt.Errorf("vjaudio: build source: %w", err)
	}

	analyzer := audio.NewAnalyzer(cfg, source, rt, oscClient)

	cmdAddr, err := rt.BindCommandServer("127.0.0.1:0", nil)
	if err != nil {
		return fmt.Errorf("vjaudio: bind command server: %w", err)
	}
	evtAddr, err := rt.BindEventServer("127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("vjaudio: bind event server: %w", err)
	}
	if err := rt.Register(os.Getpid(), cmdAddr, evtAddr, rt.Telemetry().LocalAddr()); err != nil {
		return fmt.Errorf("vjaudio: register: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.RunHeartbeat(ctx)

	if err := analyzer.Start(ctx); err != nil {
		_ = rt.MarkCrashed()
		return fmt.Errorf("vjaudio: start capture: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("vjaudio: shutting down")
	analyzer.Stop()
	if oscClient != nil {
		_ = oscClient.Close()
	}
	_ = rt.Drain()
	return rt.Stop()
}

func buildSource() (audio.Source, error) {
	if synthetic {
		return audio.NewSyntheticSource(syntheticHz, -1), nil
	}
	return audio.NewMalgoSource()
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
