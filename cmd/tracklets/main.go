package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// errUsage makes main print usage and exit 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("tracklets: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	command, rest := args[0], args[1:]

	switch command {
	case "build":
		return handleBuild(ctx, rest, stdout)
	case "stats":
		return handleStats(ctx, rest, stdout)
	case "resolve":
		return handleResolve(ctx, rest, stdout)
	case "frame":
		return handleFrame(ctx, rest, stdout)
	case "serve":
		return handleServe(ctx, rest, stdout)
	case "cache":
		return handleCache(ctx, rest, stdout)
	case "migrate":
		return handleMigrate(rest, stdout)
	case "version":
		return handleVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `tracklets - KITTI tracking tracklet dataset tool

Usage: tracklets <command> [options]

Commands:
  build      Index a split and populate its tracklet cache
  stats      Print tracklet counts; optionally write PNG/HTML reports
  resolve    Map a global frame index to (tracklet, frame)
  frame      Print the box and point count of one frame
  serve      Run the debug HTTP server
  cache      List (default) or rm stored cache blobs
  migrate    Apply or inspect SQLite cache migrations
  version    Show version
  help       Show this help message

Common Flags:
  --config <file>       Dataset configuration JSON
  --env <file>          Environment file with KITTI_* overrides (default: .env)
  --split <name>        train, val or test (default: train)
  --data-root <dir>     Override data_root_dir
  --cache-backend <b>   file, sqlite or memory
  --cache-dir <dir>     Override cache_dir
  --db <file>           SQLite cache database (default: <cache-dir>/tracklets.db)
  --debug               Restrict each split to one scene

Examples:
  tracklets build --config kitti.json --split train
  tracklets resolve --config kitti.json --index 1234
  tracklets stats --config kitti.json --split val --png lengths.png --html report.html
  tracklets cache --config kitti.json rm KITTI_Car_train_velodyne_-1_1.cache
  tracklets serve --config kitti.json --cache-backend sqlite --listen :8090`)
}

// parseFlags parses args with usage errors returned instead of exiting.
func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected arguments %v", fs.Name(), fs.Args())
	}
	return nil
}
