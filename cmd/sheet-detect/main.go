// Command sheet-detect runs the sheet and foot detector over image files and
// prints one JSON line per file, in the order the files were given.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/sheet-detect/internal/config"
	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/imaging"
	"github.com/ironsheep/sheet-detect/internal/logging"
)

// fileResult is one output line.
type fileResult struct {
	File string `json:"file"`
	detection.Result
	Overlay string `json:"overlay,omitempty"`
	Error   string `json:"error,omitempty"`
}

type options struct {
	workers     int
	annotateDir string
	format      imaging.Format
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sheet-detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("SHEET_CONFIG"), "path to a TOML config file")
	workers := fs.Int("workers", runtime.NumCPU(), "number of files processed at once")
	strategy := fs.String("strategy", "", "sheet search strategy: line-cluster or quad")
	backend := fs.String("backend", "", "pipeline backend: go or opencv")
	annotateDir := fs.String("annotate", "", "write annotated overlays into this directory")
	format := fs.String("format", "png", "overlay encoding: png or webp")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sheet-detect [options] file...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
		return 1
	}
	if *strategy != "" {
		cfg.Detection.Strategy = *strategy
	}
	if *backend != "" {
		cfg.Detection.Backend = *backend
	}

	closer, err := logging.Setup(cfg.Log.LogOptions())
	if err != nil {
		fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
		return 1
	}
	defer closer.Close()

	params, err := cfg.Detection.Params()
	if err != nil {
		fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
		return 1
	}
	d, err := detection.New(params)
	if err != nil {
		fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
		return 1
	}

	opts := options{workers: max(*workers, 1), annotateDir: *annotateDir}
	if opts.format, err = imaging.ParseFormat(*format); err != nil {
		fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
		return 2
	}
	if opts.annotateDir != "" {
		if err := os.MkdirAll(opts.annotateDir, 0o755); err != nil {
			fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
			return 1
		}
	}

	results := detectAll(d, fs.Args(), opts)

	enc := json.NewEncoder(stdout)
	status := 0
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			fmt.Fprintf(stderr, "sheet-detect: %v\n", err)
			return 1
		}
		if r.Error != "" {
			status = 1
		}
	}
	return status
}

// detectAll processes files with at most opts.workers running at once. The
// results are in the order of files.
func detectAll(d *detection.Detector, files []string, opts options) []fileResult {
	results := make([]fileResult, len(files))
	names := overlayNames(files, opts.format.Ext())

	var g errgroup.Group
	g.SetLimit(opts.workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			results[i] = detectFile(d, file, names[i], opts)
			return nil
		})
	}
	// failures are reported per file
	_ = g.Wait()

	return results
}

// overlayNames returns the overlay file name for each input as
// <name>_overlay.<ext>. Inputs that share a base name get a numeric suffix
// in input order, so no two overlays write the same file.
func overlayNames(files []string, ext string) []string {
	names := make([]string, len(files))
	used := make(map[string]bool, len(files))
	for i, file := range files {
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		name := base + "_overlay" + ext
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d_overlay%s", base, n, ext)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func detectFile(d *detection.Detector, file, overlay string, opts options) fileResult {
	res := fileResult{File: file}

	f, err := os.Open(file)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	img, err := imaging.Decode(f)
	f.Close()
	if err != nil {
		res.Error = err.Error()
		logging.Warnf("%s: %v", file, err)
		return res
	}

	if opts.annotateDir == "" {
		if res.Result, err = d.Detect(img); err != nil {
			res.Error = err.Error()
		}
		return res
	}

	a := d.Analyze(img)
	res.Result = a.Result
	if d.Params().Backend != detection.BackendGo {
		if res.Result, err = d.Detect(img); err != nil {
			res.Error = err.Error()
			return res
		}
	}
	if res.Overlay, err = writeOverlay(a, overlay, opts); err != nil {
		res.Error = err.Error()
	}
	return res
}

// writeOverlay draws a onto its source photo and saves it in the overlay
// directory under name.
func writeOverlay(a *detection.Analysis, name string, opts options) (string, error) {
	out, err := imaging.Annotate(a.Source, a.Overlay(), imaging.DefaultOverlayStyle())
	if err != nil {
		return "", err
	}

	path := filepath.Join(opts.annotateDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := imaging.Encode(f, out, opts.format); err != nil {
		f.Close()
		return "", fmt.Errorf("encode overlay: %w", err)
	}
	return path, f.Close()
}
