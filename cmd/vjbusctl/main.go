// Command vjbusctl is the operator CLI for the bus: it lists registered
// workers, sends start/stop/restart commands to the Process Manager, and
// tails a worker's event stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abossard/vjbus/pkg/busclient"
	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
)

var (
	Version = "dev"

	stateDirFlag string
	timeoutFlag  time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "vjbusctl",
	Short:   "Operate and inspect the VJ Bus worker fleet",
	Version: Version,
}

func init() {
	log.Init(log.Config{Level: log.WarnLevel, JSONOutput: false, Output: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "", "registry/state directory (defaults to VJ_STATE_DIR)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 5*time.Second, "command ack timeout")

	rootCmd.AddCommand(listCmd, startCmd, stopCmd, restartCmd, monitorCmd, watchCmd)
}

func newClient() (*busclient.Client, error) {
	dir := stateDirFlag
	if dir == "" {
		if env := os.Getenv("VJ_STATE_DIR"); env != "" {
			dir = env
		} else {
			dir = "/var/lib/vjbus"
		}
	}
	return busclient.New(dir)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workers and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Stop()

		entries, err := c.DiscoverWorkers(2 * time.Second)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-24s %-10s pid=%-8d gen=%-4d instance=%s\n", e.Worker, e.Status, e.PID, e.Generation, e.InstanceID)
		}
		return nil
	},
}

func sendCommand(worker, verb string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	ack, err := c.SendCommand(ctx, "process-manager", verb, map[string]interface{}{"worker": worker}, "", timeoutFlag)
	if err != nil {
		return err
	}
	if ack.Status != envelope.AckOK {
		return fmt.Errorf("%s failed: %s", verb, ack.Message)
	}
	fmt.Printf("%s: %s ok\n", verb, worker)
	return nil
}

var startCmd = &cobra.Command{
	Use:   "start <worker>",
	Short: "Start a worker via the Process Manager",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return sendCommand(args[0], "start_worker") },
}

var stopCmd = &cobra.Command{
	Use:   "stop <worker>",
	Short: "Stop a worker via the Process Manager",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return sendCommand(args[0], "stop_worker") },
}

var restartCmd = &cobra.Command{
	Use:   "restart <worker>",
	Short: "Restart a worker via the Process Manager",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return sendCommand(args[0], "restart_worker") },
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print a live status table of every registered worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sigCh:
				return nil
			case <-ticker.C:
				entries, err := c.DiscoverWorkers(2 * time.Second)
				if err != nil {
					continue
				}
				fmt.Print("\033[H\033[2J")
				fmt.Println("WORKER                   STATUS     PID")
				for _, e := range entries {
					fmt.Printf("%-24s %-10s %d\n", e.Worker, e.Status, e.PID)
				}
			}
		}
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <worker>",
	Short: "Tail a worker's event stream until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Stop()

		unsub := c.SubscribeEvents(args[0], func(env *envelope.Envelope) {
			payload, err := env.Event()
			if err != nil {
				return
			}
			fmt.Printf("[%s] %s: %s %v\n", env.Worker, payload.Level, payload.Message, payload.Data)
		})
		defer unsub()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}
