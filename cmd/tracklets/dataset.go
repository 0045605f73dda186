package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/banshee-data/tracklets/internal/config"
	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti"
	"github.com/banshee-data/tracklets/internal/kitti/cache"
	"github.com/banshee-data/tracklets/internal/kitti/storage/sqlite"
)

const defaultDBName = "tracklets.db"

// datasetFlags are shared by every command that opens a dataset.
type datasetFlags struct {
	configPath   string
	envFile      string
	split        string
	dataRoot     string
	cacheBackend string
	cacheDir     string
	dbPath       string
	debug        bool
}

func registerDatasetFlags(fs *flag.FlagSet) *datasetFlags {
	df := &datasetFlags{}
	fs.StringVar(&df.configPath, "config", "", "Dataset configuration JSON")
	fs.StringVar(&df.envFile, "env", ".env", "Environment file with KITTI_* overrides")
	fs.StringVar(&df.split, "split", "train", "Split: train, val or test")
	fs.StringVar(&df.dataRoot, "data-root", "", "Override data_root_dir")
	fs.StringVar(&df.cacheBackend, "cache-backend", "", "Override cache_backend: file, sqlite or memory")
	fs.StringVar(&df.cacheDir, "cache-dir", "", "Override cache_dir")
	fs.StringVar(&df.dbPath, "db", "", "SQLite cache database path")
	fs.BoolVar(&df.debug, "debug", false, "Restrict each split to one scene")
	return df
}

// loadConfig layers defaults, the JSON file, the environment and flags.
func (df *datasetFlags) loadConfig() (*config.DatasetConfig, error) {
	if df.envFile != "" {
		if err := godotenv.Load(df.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", df.envFile, err)
		}
	}

	cfg := config.DefaultDatasetConfig()
	if df.configPath != "" {
		loaded, err := config.LoadDatasetConfig(df.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if df.dataRoot != "" {
		cfg.DataRootDir = &df.dataRoot
	}
	if df.cacheBackend != "" {
		cfg.CacheBackend = &df.cacheBackend
	}
	if df.cacheDir != "" {
		cfg.CacheDir = &df.cacheDir
	}
	if df.debug {
		debug := true
		cfg.Debug = &debug
	}
	return cfg, cfg.Validate()
}

func (df *datasetFlags) sqlitePath(cfg *config.DatasetConfig) string {
	if df.dbPath != "" {
		return df.dbPath
	}
	return filepath.Join(cfg.GetCacheDir(), defaultDBName)
}

// openedDataset bundles a dataset with the resources to release.
type openedDataset struct {
	*kitti.Dataset
	sqlite *sqlite.CacheStore
}

func (o *openedDataset) Close() error {
	if o.sqlite != nil {
		return o.sqlite.Close()
	}
	return nil
}

// openDataset opens the configured split. forceCache turns caching on for
// the split regardless of cache_train/cache_eval.
func (df *datasetFlags) openDataset(ctx context.Context, forceCache bool, progress io.Writer) (*openedDataset, error) {
	cfg, err := df.loadConfig()
	if err != nil {
		return nil, err
	}
	split, err := kitti.ParseSplit(df.split)
	if err != nil {
		return nil, err
	}
	if forceCache {
		on := true
		if split.IsTraining() {
			cfg.CacheTrain = &on
		} else {
			cfg.CacheEval = &on
		}
	}

	out := &openedDataset{}
	var store cache.Store
	switch cfg.GetCacheBackend() {
	case "memory":
		store = cache.NewMemoryStore()
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(df.sqlitePath(cfg)), 0755); err != nil {
			return nil, err
		}
		s, err := sqlite.Open(df.sqlitePath(cfg))
		if err != nil {
			return nil, err
		}
		out.sqlite = s
		store = s
	default:
		store = cache.NewFileStore(fsutil.OSFileSystem{}, cfg.GetCacheDir())
	}

	ds, err := kitti.Open(ctx, cfg, split, kitti.Options{
		FS:       fsutil.OSFileSystem{},
		Store:    store,
		Progress: progress,
	})
	if err != nil {
		out.Close()
		return nil, err
	}
	out.Dataset = ds
	return out, nil
}
