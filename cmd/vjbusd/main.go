// Command vjbusd is the Process Manager daemon: with no flags it spawns
// every auto-start worker named in the manifest and runs in the
// foreground; --list prints current status and exits; --monitor prints a
// live status table until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abossard/vjbus/pkg/config"
	"github.com/abossard/vjbus/pkg/log"
	"github.com/abossard/vjbus/pkg/metrics"
	"github.com/abossard/vjbus/pkg/procmgr"
)

const (
	exitClean  = 0
	exitFatal  = 1
	exitConfig = 2
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFatal)
	}
}

var rootCmd = &cobra.Command{
	Use:     "vjbusd",
	Short:   "VJ Bus Process Manager — supervises the worker fleet",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("vjbusd version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildTime))
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "output logs in JSON format")
	rootCmd.PersistentFlags().String("config-dir", "", "directory to search for vjbus.yaml")
	rootCmd.Flags().Bool("list", false, "print manifest and current status, then exit")
	rootCmd.Flags().Bool("monitor", false, "print a live status table until interrupted")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut, Output: os.Stdout})
}

func run(cmd *cobra.Command, _ []string) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	listOnly, _ := cmd.Flags().GetBool("list")
	monitor, _ := cmd.Flags().GetBool("monitor")

	mgr, err := procmgr.New(procmgr.Config{
		StateDir:     cfg.StateDir,
		LogDir:       cfg.LogDir,
		ManifestPath: cfg.ManifestPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	if listOnly {
		return printWorkerList(mgr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Adopt(); err != nil {
		log.Error("procmgr: adopt failed: " + err.Error())
	}
	if err := mgr.StartAll(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	if _, err := mgr.Runtime().BindCommandServer("127.0.0.1:0", mgr.CommandHandlers()); err != nil {
		return fmt.Errorf("bind command server: %w", err)
	}
	if _, err := mgr.Runtime().BindEventServer("127.0.0.1:0"); err != nil {
		return fmt.Errorf("bind event server: %w", err)
	}
	if err := mgr.Runtime().Register(os.Getpid(), "", "", ""); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	go mgr.Runtime().RunHeartbeat(ctx)

	collector := metrics.NewCollector(mgr.Registry())
	collector.Start()
	defer collector.Stop()

	metricsHTTP := startMetricsServer()
	defer metricsHTTP()

	if monitor {
		go printMonitorTable(ctx, mgr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("vjbusd: shutting down")
	mgr.Stop()
	os.Exit(exitClean)
	return nil
}

func printWorkerList(mgr *procmgr.Manager) error {
	for _, s := range mgr.Status() {
		status := "stopped"
		switch {
		case s.Failed:
			status = "failed"
		case s.Running:
			status = fmt.Sprintf("running (pid %d, gen %d)", s.PID, s.Generation)
		}
		fmt.Printf("%-24s %-40s auto_restart=%-5v %s\n", s.Worker, s.Executable, s.AutoRestart, status)
	}
	return nil
}

func printMonitorTable(ctx context.Context, mgr *procmgr.Manager) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Print("\033[H\033[2J")
			fmt.Println("WORKER                   STATUS")
			for _, s := range mgr.Status() {
				status := "stopped"
				switch {
				case s.Failed:
					status = "failed"
				case s.Running:
					status = fmt.Sprintf("running (pid %d)", s.PID)
				}
				fmt.Printf("%-24s %s\n", s.Worker, status)
			}
		}
	}
}

func startMetricsServer() func() {
	srv := &http.Server{Addr: "127.0.0.1:9091", Handler: metricsMux()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics: server stopped: " + err.Error())
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
