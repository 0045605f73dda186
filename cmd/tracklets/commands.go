package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/banshee-data/tracklets/internal/debugserver"
	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti/cache"
	"github.com/banshee-data/tracklets/internal/kitti/storage/sqlite"
	"github.com/banshee-data/tracklets/internal/report"
	"github.com/banshee-data/tracklets/internal/version"
)

func handleBuild(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	quiet := fs.Bool("quiet", false, "Hide the progress bar")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var progress io.Writer = os.Stderr
	if *quiet {
		progress = nil
	}
	ds, err := df.openDataset(ctx, true, progress)
	if err != nil {
		return err
	}
	defer ds.Close()

	state := "built"
	if ds.CacheHit() {
		state = "already cached"
	}
	fmt.Fprintf(stdout, "%s: %s (%d tracklets, %d frames)\n",
		ds.Fingerprint().Key(), state, ds.NumTracklets(), ds.NumFrames())
	return nil
}

func handleStats(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	pngPath := fs.String("png", "", "Write a tracklet length histogram to this file")
	htmlPath := fs.String("html", "", "Write an HTML chart report to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ds, err := df.openDataset(ctx, false, nil)
	if err != nil {
		return err
	}
	defer ds.Close()

	sum := debugserver.Stats(ds.Dataset)
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
	} else {
		printSummary(stdout, sum)
	}

	if *pngPath != "" {
		if err := report.SaveLengthPlot(*pngPath, ds.Tracklets(), sum.Fingerprint); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", *pngPath)
	}
	if *htmlPath != "" {
		f, err := os.Create(*htmlPath)
		if err != nil {
			return err
		}
		if err := report.RenderHTML(f, sum, report.LengthHistogram(ds.Tracklets())); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", *htmlPath)
	}
	return nil
}

func printSummary(w io.Writer, s report.Summary) {
	fmt.Fprintf(w, "split:       %s\n", s.Split)
	fmt.Fprintf(w, "fingerprint: %s\n", s.Fingerprint)
	fmt.Fprintf(w, "cached:      %v\n", s.Cached)
	fmt.Fprintf(w, "scenes:      %d\n", s.Scenes)
	fmt.Fprintf(w, "tracklets:   %d\n", s.Tracklets)
	fmt.Fprintf(w, "frames:      %d\n", s.Frames)
	fmt.Fprintf(w, "length:      min %d, max %d, mean %.2f\n", s.MinLength, s.MaxLength, s.MeanLength)

	types := make([]string, 0, len(s.ByType))
	for typ := range s.ByType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Fprintf(w, "  %-12s %d\n", typ, s.ByType[typ])
	}
}

func handleResolve(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	index := fs.Int("index", -1, "Global frame index (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *index < 0 {
		return fmt.Errorf("resolve: --index is required: %w", errUsage)
	}

	ds, err := df.openDataset(ctx, false, nil)
	if err != nil {
		return err
	}
	defer ds.Close()

	t, f, err := ds.Resolve(*index)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d -> tracklet %d, frame %d\n", *index, t, f)
	return nil
}

func handleFrame(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("frame", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	tracklet := fs.Int("tracklet", -1, "Tracklet id (required)")
	frame := fs.Int("frame", 0, "Frame within the tracklet")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *tracklet < 0 {
		return fmt.Errorf("frame: --tracklet is required: %w", errUsage)
	}

	ds, err := df.openDataset(ctx, false, nil)
	if err != nil {
		return err
	}
	defer ds.Close()

	fr, err := ds.Frame(*tracklet, *frame)
	if err != nil {
		return err
	}
	b := fr.Box
	fmt.Fprintf(stdout, "scene %04d frame %06d track %d (%s)\n", fr.Record.Scene, fr.Record.Frame, fr.Record.TrackID, fr.Record.Type)
	fmt.Fprintf(stdout, "center:      %.3f %.3f %.3f\n", b.Center.X, b.Center.Y, b.Center.Z)
	fmt.Fprintf(stdout, "size (wlh):  %.3f %.3f %.3f\n", b.Size.X, b.Size.Y, b.Size.Z)
	fmt.Fprintf(stdout, "orientation: %.4f %.4f %.4f %.4f\n", b.Orientation.Real, b.Orientation.Imag, b.Orientation.Jmag, b.Orientation.Kmag)
	fmt.Fprintf(stdout, "points:      %d\n", fr.PointCloud.Len())
	return nil
}

func handleServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	listen := fs.String("listen", ":8090", "HTTP listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ds, err := df.openDataset(ctx, false, os.Stderr)
	if err != nil {
		return err
	}
	defer ds.Close()

	fmt.Fprintf(stdout, "serving %s on %s\n", ds.Fingerprint().Key(), *listen)
	return debugserver.New(debugserver.Config{
		Address: *listen,
		Dataset: ds.Dataset,
		SQLite:  ds.sqlite,
	}).Start(ctx)
}

// handleCache lists or removes stored blobs: cache [list|rm <key>...].
func handleCache(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	action, keys := "list", []string(nil)
	if fs.NArg() > 0 {
		action, keys = fs.Arg(0), fs.Args()[1:]
	}

	cfg, err := df.loadConfig()
	if err != nil {
		return err
	}

	var entries []cache.Entry
	var remove func(ctx context.Context, key string) error
	switch cfg.GetCacheBackend() {
	case "sqlite":
		path := df.sqlitePath(cfg)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		rows, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			entries = append(entries, cache.Entry{Key: r.Fingerprint, SizeBytes: r.SizeBytes})
		}
		remove = store.Delete
	case "memory":
		return fmt.Errorf("cache: the memory backend keeps nothing between runs")
	default:
		store := cache.NewFileStore(fsutil.OSFileSystem{}, cfg.GetCacheDir())
		if entries, err = store.List(ctx); err != nil {
			return err
		}
		remove = store.Delete
	}

	switch action {
	case "list":
		if len(keys) > 0 {
			return fmt.Errorf("cache list: unexpected arguments %v: %w", keys, errUsage)
		}
		for _, e := range entries {
			fmt.Fprintf(stdout, "%s\t%d bytes\n", e.Key, e.SizeBytes)
		}
		fmt.Fprintf(stdout, "%d entries\n", len(entries))
	case "rm":
		if len(keys) == 0 {
			return fmt.Errorf("cache rm: no keys given: %w", errUsage)
		}
		for _, key := range keys {
			if err := remove(ctx, key); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "removed %s\n", key)
		}
	default:
		return fmt.Errorf("cache: unknown action %q: %w", action, errUsage)
	}
	return nil
}

func handleMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	df := registerDatasetFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	cfg, err := df.loadConfig()
	if err != nil {
		return err
	}
	path := df.sqlitePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// Open applies pending migrations.
	store, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "up":
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("migrate: unknown action %q: %w", action, errUsage)
	}

	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: schema version %d (dirty=%v)\n", path, v, dirty)
	return nil
}

func handleVersion(stdout io.Writer) error {
	fmt.Fprintf(stdout, "tracklets %s\n", version.String())
	return nil
}
