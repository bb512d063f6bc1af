package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/benchlab/fleetsched/pkg/log"
	"github.com/benchlab/fleetsched/pkg/rpc"
	"github.com/benchlab/fleetsched/pkg/worker"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "work",
	Short: "Run the worker process: a gRPC job launcher and a file server",
	RunE:  runWork,
}

func init() {
	rootCmd.Flags().Int("port", 9100, "Port the gRPC job service listens on")
	rootCmd.Flags().Int("file-server-port", 9101, "Port the HTTP file server listens on")
	rootCmd.Flags().String("log-dir", "", "Directory for the rotating worker log file (stdout if empty)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func runWork(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	fileServerPort, _ := cmd.Flags().GetInt("file-server-port")
	logDir, _ := cmd.Flags().GetString("log-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logCfg := log.Config{Level: log.Level(logLevel)}
	if logDir != "" {
		logCfg.RotateFile = filepath.Join(logDir, "worker.log")
	}
	log.Init(logCfg)

	w := worker.NewWorker()

	grpcServer := grpc.NewServer(rpc.ServerOptions()...)
	rpc.RegisterWorkerServiceServer(grpcServer, w)

	grpcAddr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server error: %w", err)
		}
	}()

	fileServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", fileServerPort),
		Handler: worker.FileHandler(w.AllowList()),
	}
	go func() {
		if err := fileServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("file server error: %w", err)
		}
	}()

	fmt.Printf("Worker running: grpc on %s, files on :%d\n", grpcAddr, fileServerPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		grpcServer.GracefulStop()
		fileServer.Close()
		return err
	}

	grpcServer.GracefulStop()
	return fileServer.Close()
}
