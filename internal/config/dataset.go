package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Accepted values for the enumerated options. They mirror the parsers in the
// kitti packages, which remain the authority at dataset construction time.
var (
	validCategories      = []string{"Car", "Van", "Pedestrian", "Cyclist", "All"}
	validCoordinateModes = []string{"camera", "velodyne", "sensor"}
	validCacheBackends   = []string{"file", "sqlite", "memory"}
)

// IntervalSetting is the preload_interval option: a positive integer or the
// literal "all" for exhaustive subsampling. JSON accepts either a number or
// a string.
type IntervalSetting string

// IntervalAll selects exhaustive subsampling.
const IntervalAll IntervalSetting = "all"

// UnmarshalJSON accepts 5, "5" and "all".
func (s *IntervalSetting) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = IntervalSetting(str)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("preload_interval must be an integer or \"all\": %w", err)
	}
	*s = IntervalSetting(strconv.Itoa(n))
	return nil
}

func (s IntervalSetting) validate() error {
	if s == IntervalAll || s == "exhaustive" {
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil || n < 1 {
		return fmt.Errorf("preload_interval must be a positive integer or \"all\", got %q", string(s))
	}
	return nil
}

// DatasetConfig is the configuration surface of the KITTI tracklet dataset.
// Fields are pointers so partial JSON files and environment overlays only
// touch what they set; the Get* methods supply defaults.
type DatasetConfig struct {
	DataRootDir    *string `json:"data_root_dir,omitempty"`
	CategoryName   *string `json:"category_name,omitempty"`
	CoordinateMode *string `json:"coordinate_mode,omitempty"`
	Debug          *bool   `json:"debug,omitempty"`

	// Preload params
	PreloadOffset   *float64         `json:"preload_offset,omitempty"` // <= 0 disables cropping
	PreloadInterval *IntervalSetting `json:"preload_interval,omitempty"`

	// Cache params
	CacheTrain   *bool   `json:"cache_train,omitempty"`
	CacheEval    *bool   `json:"cache_eval,omitempty"`
	CacheBackend *string `json:"cache_backend,omitempty"`
	CacheDir     *string `json:"cache_dir,omitempty"` // defaults to data_root_dir
	Workers      *int    `json:"workers,omitempty"`

	// Template merge params
	ModelOffset *float64 `json:"model_offset,omitempty"`
	ModelScale  *float64 `json:"model_scale,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDatasetConfig returns a DatasetConfig with all fields set to nil.
func EmptyDatasetConfig() *DatasetConfig {
	return &DatasetConfig{}
}

// DefaultDatasetConfig returns a config with every field populated with its
// default value.
func DefaultDatasetConfig() *DatasetConfig {
	interval := IntervalSetting("1")
	return &DatasetConfig{
		DataRootDir:     ptrString(""),
		CategoryName:    ptrString("Car"),
		CoordinateMode:  ptrString("velodyne"),
		Debug:           ptrBool(false),
		PreloadOffset:   ptrFloat64(-1),
		PreloadInterval: &interval,
		CacheTrain:      ptrBool(false),
		CacheEval:       ptrBool(false),
		CacheBackend:    ptrString("file"),
		Workers:         ptrInt(1),
		ModelOffset:     ptrFloat64(2.0),
		ModelScale:      ptrFloat64(1.0),
	}
}

// LoadDatasetConfig loads a DatasetConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadDatasetConfig(path string) (*DatasetConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDatasetConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays KITTI_* variables returned by lookup (usually
// os.LookupEnv) onto the config.
func (c *DatasetConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst **string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = ptrString(v)
		}
	}
	str("KITTI_DATA_ROOT", &c.DataRootDir)
	str("KITTI_CATEGORY", &c.CategoryName)
	str("KITTI_COORDINATE_MODE", &c.CoordinateMode)
	str("KITTI_CACHE_BACKEND", &c.CacheBackend)
	str("KITTI_CACHE_DIR", &c.CacheDir)

	if v, ok := lookup("KITTI_PRELOAD_INTERVAL"); ok && v != "" {
		interval := IntervalSetting(strings.TrimSpace(v))
		c.PreloadInterval = &interval
	}
	if v, ok := lookup("KITTI_PRELOAD_OFFSET"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("KITTI_PRELOAD_OFFSET: %w", err)
		}
		c.PreloadOffset = ptrFloat64(f)
	}
	if v, ok := lookup("KITTI_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KITTI_WORKERS: %w", err)
		}
		c.Workers = ptrInt(n)
	}
	for key, dst := range map[string]**bool{
		"KITTI_DEBUG":       &c.Debug,
		"KITTI_CACHE_TRAIN": &c.CacheTrain,
		"KITTI_CACHE_EVAL":  &c.CacheEval,
	} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = ptrBool(b)
		}
	}
	return c.Validate()
}

// Validate checks that the configuration values are valid.
func (c *DatasetConfig) Validate() error {
	if c.CategoryName != nil && !contains(validCategories, *c.CategoryName) {
		return fmt.Errorf("category_name must be one of %v, got %q", validCategories, *c.CategoryName)
	}
	if c.CoordinateMode != nil && !contains(validCoordinateModes, *c.CoordinateMode) {
		return fmt.Errorf("coordinate_mode must be one of %v, got %q", validCoordinateModes, *c.CoordinateMode)
	}
	if c.CacheBackend != nil && !contains(validCacheBackends, *c.CacheBackend) {
		return fmt.Errorf("cache_backend must be one of %v, got %q", validCacheBackends, *c.CacheBackend)
	}
	if c.PreloadInterval != nil {
		if err := c.PreloadInterval.validate(); err != nil {
			return err
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.ModelScale != nil && *c.ModelScale <= 0 {
		return fmt.Errorf("model_scale must be positive, got %f", *c.ModelScale)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GetDataRootDir returns the data_root_dir value or the default.
func (c *DatasetConfig) GetDataRootDir() string {
	if c.DataRootDir == nil {
		return ""
	}
	return *c.DataRootDir
}

// GetCategoryName returns the category_name value or the default.
func (c *DatasetConfig) GetCategoryName() string {
	if c.CategoryName == nil {
		return "Car"
	}
	return *c.CategoryName
}

// GetCoordinateMode returns the coordinate_mode value or the default.
func (c *DatasetConfig) GetCoordinateMode() string {
	if c.CoordinateMode == nil {
		return "velodyne"
	}
	return *c.CoordinateMode
}

// GetDebug returns the debug value or the default.
func (c *DatasetConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// GetPreloadOffset returns the preload_offset value or the default
// (cropping disabled).
func (c *DatasetConfig) GetPreloadOffset() float64 {
	if c.PreloadOffset == nil {
		return -1
	}
	return *c.PreloadOffset
}

// GetPreloadInterval returns the preload_interval value or the default.
func (c *DatasetConfig) GetPreloadInterval() string {
	if c.PreloadInterval == nil || *c.PreloadInterval == "" {
		return "1"
	}
	return string(*c.PreloadInterval)
}

// GetCacheTrain returns the cache_train value or the default.
func (c *DatasetConfig) GetCacheTrain() bool {
	if c.CacheTrain == nil {
		return false
	}
	return *c.CacheTrain
}

// GetCacheEval returns the cache_eval value or the default.
func (c *DatasetConfig) GetCacheEval() bool {
	if c.CacheEval == nil {
		return false
	}
	return *c.CacheEval
}

// GetCacheBackend returns the cache_backend value or the default.
func (c *DatasetConfig) GetCacheBackend() string {
	if c.CacheBackend == nil {
		return "file"
	}
	return *c.CacheBackend
}

// GetCacheDir returns cache_dir, falling back to data_root_dir.
func (c *DatasetConfig) GetCacheDir() string {
	if c.CacheDir == nil || *c.CacheDir == "" {
		return c.GetDataRootDir()
	}
	return *c.CacheDir
}

// GetWorkers returns the workers value or the default.
func (c *DatasetConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetModelOffset returns the model_offset value or the default.
func (c *DatasetConfig) GetModelOffset() float64 {
	if c.ModelOffset == nil {
		return 2.0
	}
	return *c.ModelOffset
}

// GetModelScale returns the model_scale value or the default.
func (c *DatasetConfig) GetModelScale() float64 {
	if c.ModelScale == nil {
		return 1.0
	}
	return *c.ModelScale
}
