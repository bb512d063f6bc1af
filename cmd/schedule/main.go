package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benchlab/fleetsched/pkg/console"
	"github.com/benchlab/fleetsched/pkg/dashboard"
	"github.com/benchlab/fleetsched/pkg/log"
	"github.com/benchlab/fleetsched/pkg/metrics"
	"github.com/benchlab/fleetsched/pkg/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the fleet scheduler: placement loop, dashboard, and operator console",
	RunE:  runSchedule,
}

func init() {
	hostname, _ := os.Hostname()
	rootCmd.Flags().String("name", hostname, "Name to give this scheduler instance")
	rootCmd.Flags().Int("dashboard-port", 9200, "Port the dashboard HTTP server listens on")
	rootCmd.Flags().Int("polling-secs", 1, "Scheduling loop tick interval, in seconds")
	rootCmd.Flags().String("log-dir", "", "Directory for the rotating scheduler log file (stdout if empty)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	dashboardPort, _ := cmd.Flags().GetInt("dashboard-port")
	pollingSecs, _ := cmd.Flags().GetInt("polling-secs")
	logDir, _ := cmd.Flags().GetString("log-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logCfg := log.Config{Level: log.Level(logLevel)}
	if logDir != "" {
		logCfg.RotateFile = filepath.Join(logDir, "scheduler.log")
	}
	log.Init(logCfg)

	sched := scheduler.NewScheduler(name, time.Duration(pollingSecs)*time.Second)
	sched.Start()
	defer sched.Stop()

	collector := metrics.NewCollector(sched)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion("1.0.0")
	metrics.RegisterComponent("scheduler", true, "running")
	metrics.RegisterComponent("dashboard", false, "starting")

	dash := dashboard.New(name, sched)
	addr := fmt.Sprintf(":%d", dashboardPort)
	server := &http.Server{Addr: addr, Handler: dash.Handler()}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("dashboard server error: %w", err)
		}
	}()
	time.Sleep(200 * time.Millisecond)
	metrics.RegisterComponent("dashboard", true, "running")
	fmt.Printf("Scheduler %q running, dashboard at http://0.0.0.0%s\n", name, addr)

	go console.New(sched, os.Stdin, os.Stdout).Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		server.Close()
		return err
	}

	return server.Close()
}
