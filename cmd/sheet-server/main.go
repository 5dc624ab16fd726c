package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/sheet-detect/internal/config"
	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/httpapi"
	"github.com/ironsheep/sheet-detect/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("SHEET_CONFIG"), "path to a TOML config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	showVersion := flag.Bool("version", false, "print version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sheet-server %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		fmt.Printf("  OpenCV backend: %t\n", detection.OpenCVAvailable)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sheet-server: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	closer, err := logging.Setup(cfg.Log.LogOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sheet-server: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	params, err := cfg.Detection.Params()
	if err != nil {
		logging.Fatalf("Invalid detection settings: %v", err)
	}
	d, err := detection.New(params)
	if err != nil {
		logging.Fatalf("Cannot create detector: %v", err)
	}
	logging.Infof("sheet-server %s: strategy=%s backend=%s", Version, params.Strategy, params.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpapi.New(d, cfg.Server).ListenAndServe(ctx); err != nil {
		logging.Errorf("Server error: %v", err)
		closer.Close()
		os.Exit(1)
	}
	logging.Infof("Server stopped")
}
