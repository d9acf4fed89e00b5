package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sensitive-scanner/internal/classify"
	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/fetcher"
	"sensitive-scanner/internal/mediatypes"
	"sensitive-scanner/internal/scan"
	"sensitive-scanner/internal/workers"
)

// dirSource enumerates media files under a directory without a catalog
// database, so a one-shot scan can run against any folder.
type dirSource struct {
	root string
}

func (s *dirSource) Enumerate(ctx context.Context, includeVideos bool) ([]database.Asset, error) {
	var assets []database.Asset

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() != "." && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}

		kind := mediatypes.KindForPath(path)
		if kind == mediatypes.KindOther {
			return nil
		}
		if kind == mediatypes.KindVideo && !includeVideos {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		assets = append(assets, database.Asset{
			ID:      rel,
			Path:    rel,
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func main() {
	dir := flag.String("dir", ".", "directory to scan")
	classifierURL := flag.String("classifier", "http://127.0.0.1:5800", "classifier sidecar base URL")
	includeVideos := flag.Bool("videos", false, "include video files")
	sequential := flag.Bool("sequential", false, "process one file at a time")
	jsonOut := flag.Bool("json", false, "emit results as JSON")
	quiet := flag.Bool("quiet", false, "suppress progress output")
	flag.Parse()

	// Keep package log noise out of the CLI output unless asked for.
	if os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", "warn")
	}

	root, err := filepath.Abs(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid directory: %v\n", err)
		os.Exit(1)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: %s is not a directory\n", root)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := scan.NewScanner(
		&dirSource{root: root},
		fetcher.New(root),
		classify.NewClient(*classifierURL),
		workers.ForScan(true),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling scan...")
		scanner.Cancel()
	}()

	var progress chan scan.State
	if !*quiet && !*jsonOut {
		progress = scanner.Subscribe()
		go func() {
			for state := range progress {
				fmt.Fprintf(os.Stderr, "\r%d/%d (%d%%)", state.Processed, state.Total, state.PercentRounded())
			}
		}()
	}

	sess, err := scanner.Start(ctx, scan.Options{
		Concurrent:    !*sequential,
		IncludeVideos: *includeVideos,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sess.Wait()

	if progress != nil {
		scanner.Unsubscribe(progress)
		fmt.Fprintln(os.Stderr)
	}

	if err := printResults(scanner, root, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if scanner.Results().TotalResults() > 0 {
		os.Exit(2)
	}
}

type resultLine struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

func printResults(scanner *scan.Scanner, root string, asJSON bool) error {
	store := scanner.Results()

	lines := make([]resultLine, 0, store.TotalResults())
	for _, img := range store.Images() {
		lines = append(lines, resultLine{Path: filepath.Join(root, img.ID), Kind: "image"})
	}
	for _, vid := range store.Videos() {
		lines = append(lines, resultLine{Path: vid.Location, Kind: "video"})
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}

	state := scanner.State()
	fmt.Printf("Scanned %d assets in %v, %d flagged\n", state.Processed, state.Elapsed.Round(10*time.Millisecond), len(lines))
	for _, line := range lines {
		fmt.Printf("  [%s] %s\n", line.Kind, line.Path)
	}
	return nil
}
