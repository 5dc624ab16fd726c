package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/sheet-detect/internal/config"
	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/logging"
	"github.com/ironsheep/sheet-detect/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("sheet-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  OpenCV backend: %t\n", detection.OpenCVAvailable)
			return
		case "--help", "-h", "help":
			fmt.Println("sheet-mcp - MCP server for A4 sheet and foot detection")
			fmt.Println()
			fmt.Println("Usage: sheet-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  SHEET_CONFIG=path.toml       Load settings from a TOML file")
			fmt.Println("  SHEET_LOG_LEVEL=debug        Enable debug logging")
			fmt.Println("  SHEET_LOG_FILE=path          Log to a rotated file instead of stderr")
			fmt.Println("  SHEET_STRATEGY=quad          Default sheet search strategy")
			fmt.Println("  SHEET_BACKEND=opencv         Use the OpenCV backend (gocv builds only)")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load(os.Getenv("SHEET_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sheet-mcp: %v\n", err)
		os.Exit(1)
	}

	// stdout is for MCP protocol; logs go to stderr or the log file
	closer, err := logging.Setup(cfg.Log.LogOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sheet-mcp: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	logging.Debugf("Sheet MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	params, err := cfg.Detection.Params()
	if err != nil {
		logging.Fatalf("Invalid detection settings: %v", err)
	}
	d, err := detection.New(params)
	if err != nil {
		logging.Fatalf("Cannot create detector: %v", err)
	}

	srv := server.New(d)
	if err := srv.Run(); err != nil {
		logging.Fatalf("Server error: %v", err)
	}
}
