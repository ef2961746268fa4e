package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nullstream/dlnacast/internal/api"
	"github.com/nullstream/dlnacast/internal/config"
	"github.com/nullstream/dlnacast/internal/history"
	"github.com/nullstream/dlnacast/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	portFlag := flag.Int("port", 0, "media server bind port (0 = auto)")
	apiFlag := flag.Bool("api", false, "serve the HTTP+JSON API instead of the terminal status loop")
	flag.Parse()

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	if *portFlag != 0 {
		cfg.MediaServerPort = *portFlag
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directories: %v\n", err)
		return 1
	}

	logFile, err := os.Create(filepath.Join(cfg.LogDir, "dlnacast.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		return 1
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	log.SetPrefix("[dlnacast] ")

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Printf("failed to open history store: %v", err)
		return 1
	}
	defer hist.Close()

	controller := session.New(
		session.WithPort(cfg.MediaServerPort),
		session.WithDiscoveryTimeout(cfg.DiscoveryTimeout),
		session.WithOnCastSuccess(func(file session.MediaFile, deviceName string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := hist.Record(ctx, file.Path, file.DisplayName, deviceName, time.Now()); err != nil {
				log.Printf("record recent cast: %v", err)
			}
		}),
	)

	args := flag.Args()

	if *apiFlag {
		return runAPIMode(cfg, controller, hist)
	}

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: dlnacast [--port N] [--api] <file>")
		return 1
	}
	return runTerminalMode(controller, args[0])
}

func runAPIMode(cfg *config.Config, controller *session.Controller, hist *history.Store) int {
	a := api.New(controller, hist)
	mux := http.NewServeMux()
	a.SetupRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("api server listening on %s:%d", cfg.APIHost, cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("api server error: %v", err)
		return 1
	case <-sigCh:
		log.Println("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api server shutdown error: %v", err)
	}
	return 0
}

func runTerminalMode(controller *session.Controller, path string) int {
	file, err := controller.SelectFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "select file: %v\n", err)
		return 1
	}
	fmt.Printf("loaded %s (%s)\n", file.DisplayName, file.MIME)

	devices, err := controller.Discover()
	if err != nil {
		fmt.Fprintf(os.Stderr, "discover: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(os.Stderr, "no renderers found")
		return 1
	}
	for i, d := range devices {
		fmt.Printf("  [%d] %s\n", i, d.FriendlyName)
	}

	if err := controller.SelectDevice(0); err != nil {
		fmt.Fprintf(os.Stderr, "select device: %v\n", err)
		return 1
	}
	if err := controller.Cast(); err != nil {
		fmt.Fprintf(os.Stderr, "cast: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			controller.Leave()
			return 0
		case <-ticker.C:
			s := controller.Status()
			fmt.Printf("\r%s  %s / %s  [%s]", s.PlaybackLabel, s.ElapsedDisplay, s.DurationDisplay, s.DeviceName)
		}
	}
}
