// Package reconstruct turns a stream of RGB-D frames into one colored triangle mesh per frame.
package reconstruct

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/mesh"
	"go.viam.com/rgbdrecon/sensor"
)

// ErrInvalidConfig wraps every validation failure of a Config.
var ErrInvalidConfig = errors.New("invalid reconstruction config")

// DefaultFilePrefix names per-frame output files.
const DefaultFilePrefix = "mesh_"

// Config describes a reconstruction run.
type Config struct {
	DatasetDir string `json:"dataset_dir" yaml:"dataset_dir"`
	OutputDir  string `json:"output_dir" yaml:"output_dir"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix"`
	// IntrinsicsFile optionally names a JSON camera calibration replacing the dataset default.
	IntrinsicsFile string `json:"intrinsics_file" yaml:"intrinsics_file"`

	// EdgeThreshold is the longest triangle edge kept, in meters.
	EdgeThreshold  float64 `json:"edge_threshold" yaml:"edge_threshold"`
	FrameIncrement int     `json:"frame_increment" yaml:"frame_increment"`
	// MaxFrames stops the run after this many frames. Zero means no limit.
	MaxFrames int  `json:"max_frames" yaml:"max_frames"`
	Parallel  bool `json:"parallel" yaml:"parallel"`

	ExportPCD    bool `json:"export_pcd" yaml:"export_pcd"`
	ExportPLY    bool `json:"export_ply" yaml:"export_ply"`
	ColorByDepth bool `json:"color_by_depth" yaml:"color_by_depth"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	// LogFile additionally writes logs to this file, rotated by size.
	LogFile string `json:"log_file" yaml:"log_file"`
}

// DefaultConfig returns the settings used when a config file leaves a field out.
func DefaultConfig() Config {
	return Config{
		OutputDir:      ".",
		FilePrefix:     DefaultFilePrefix,
		EdgeThreshold:  mesh.DefaultEdgeThreshold,
		FrameIncrement: sensor.DefaultIncrement,
		LogLevel:       "info",
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.DatasetDir == "" {
		return invalid("dataset_dir is required")
	}
	if c.OutputDir == "" {
		return invalid("output_dir is required")
	}
	if strings.ContainsRune(c.FilePrefix, filepath.Separator) {
		return invalid("file_prefix %q must not contain a path separator", c.FilePrefix)
	}
	if c.EdgeThreshold <= 0 {
		return invalid("edge_threshold must be positive, got %v", c.EdgeThreshold)
	}
	if c.FrameIncrement <= 0 {
		return invalid("frame_increment must be positive, got %d", c.FrameIncrement)
	}
	if c.MaxFrames < 0 {
		return invalid("max_frames must not be negative, got %d", c.MaxFrames)
	}
	if c.LogFile != "" && filepath.Clean(c.LogFile) == filepath.Clean(c.OutputDir) {
		return invalid("log_file %q is the output directory", c.LogFile)
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return invalid("log_level: %v", err)
		}
	}
	return nil
}

// ReadConfig reads a JSON or YAML config, chosen by file extension, on top of DefaultConfig and
// validates it. JSON files may use JSON5 comments and trailing commas.
func ReadConfig(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".json5":
		err = json5.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, errors.Errorf("unsupported config extension %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
