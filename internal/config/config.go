package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/auxlab/internal/config/loader"
	"github.com/dshills/auxlab/internal/engine"
)

// Default values.
const (
	DefaultSampleRate        = 22050
	DefaultDisplayPrecision  = 6
	DefaultDisplayLimitX     = 10
	DefaultDisplayLimitY     = 10
	DefaultDisplayLimitBytes = 256
	DefaultDisplayLimitStr   = 32
	DefaultHistorySize       = 500
	DefaultLogLevel          = "info"
)

// EngineSettings configures the engine.
type EngineSettings struct {
	SampleRate int      `toml:"sample_rate" yaml:"sample_rate"`
	UDFPaths   []string `toml:"udf_paths" yaml:"udf_paths"`
}

// DisplaySettings bounds how values are rendered.
type DisplaySettings struct {
	Precision  int `toml:"precision" yaml:"precision"`
	LimitX     int `toml:"limit_x" yaml:"limit_x"`
	LimitY     int `toml:"limit_y" yaml:"limit_y"`
	LimitBytes int `toml:"limit_bytes" yaml:"limit_bytes"`
	LimitStr   int `toml:"limit_str" yaml:"limit_str"`
}

// ConsoleSettings configures the interactive console.
type ConsoleSettings struct {
	LogLevel    string `toml:"log_level" yaml:"log_level"`
	HistoryFile string `toml:"history_file" yaml:"history_file"`
	HistorySize int    `toml:"history_size" yaml:"history_size"`
}

// Settings is the complete runtime configuration.
type Settings struct {
	Engine  EngineSettings  `toml:"engine" yaml:"engine"`
	Display DisplaySettings `toml:"display" yaml:"display"`
	Console ConsoleSettings `toml:"console" yaml:"console"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Engine: EngineSettings{SampleRate: DefaultSampleRate},
		Display: DisplaySettings{
			Precision:  DefaultDisplayPrecision,
			LimitX:     DefaultDisplayLimitX,
			LimitY:     DefaultDisplayLimitY,
			LimitBytes: DefaultDisplayLimitBytes,
			LimitStr:   DefaultDisplayLimitStr,
		},
		Console: ConsoleSettings{
			LogLevel:    DefaultLogLevel,
			HistorySize: DefaultHistorySize,
		},
	}
}

// Normalize trims UDF paths, expands a leading ~ and drops empty and
// duplicate entries, keeping the first occurrence.
func (s Settings) Normalize() Settings {
	home, _ := os.UserHomeDir()
	seen := make(map[string]bool, len(s.Engine.UDFPaths))
	paths := make([]string, 0, len(s.Engine.UDFPaths))
	for _, p := range s.Engine.UDFPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if home != "" && (p == "~" || strings.HasPrefix(p, "~/")) {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	s.Engine.UDFPaths = paths
	s.Console.LogLevel = strings.ToLower(strings.TrimSpace(s.Console.LogLevel))
	return s
}

// Validate checks every setting and reports all failures at once.
func (s Settings) Validate() error {
	var errs ValidationErrors

	if s.Engine.SampleRate <= 0 {
		errs.AddWithValue("engine.sample_rate", "must be positive", s.Engine.SampleRate)
	}
	nonNegative := []struct {
		path  string
		value int
	}{
		{"display.precision", s.Display.Precision},
		{"display.limit_x", s.Display.LimitX},
		{"display.limit_y", s.Display.LimitY},
		{"display.limit_bytes", s.Display.LimitBytes},
		{"display.limit_str", s.Display.LimitStr},
		{"console.history_size", s.Console.HistorySize},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errs.AddWithValue(f.path, "must not be negative", f.value)
		}
	}
	switch s.Console.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs.AddWithValue("console.log_level", "must be one of debug, info, warn, error", s.Console.LogLevel)
	}
	for i, p := range s.Engine.UDFPaths {
		if strings.TrimSpace(p) == "" {
			errs.Add(fmt.Sprintf("engine.udf_paths[%d]", i), "must not be empty")
		}
	}

	return errs.AsError()
}

// EngineConfig converts the settings to the engine's configuration.
func (s Settings) EngineConfig() engine.Config {
	return engine.Config{
		SampleRate:        s.Engine.SampleRate,
		DisplayPrecision:  s.Display.Precision,
		DisplayLimitX:     s.Display.LimitX,
		DisplayLimitY:     s.Display.LimitY,
		DisplayLimitBytes: s.Display.LimitBytes,
		DisplayLimitStr:   s.Display.LimitStr,
		SearchPaths:       append([]string(nil), s.Engine.UDFPaths...),
	}
}

// Load builds settings from the defaults, the file at path (TOML or YAML by
// extension; a missing file is not an error) and then each extra source in
// order. The result is normalized and validated.
func Load(path string, sources ...loader.Loader) (Settings, error) {
	merged := make(map[string]any)
	if path != "" {
		m, err := loader.ForPath(path).LoadFrom(path)
		if err != nil {
			return Settings{}, err
		}
		merged = loader.DeepMerge(merged, m)
	}
	for _, src := range sources {
		m, err := src.Load()
		if err != nil {
			return Settings{}, err
		}
		merged = loader.DeepMerge(merged, m)
	}

	s, err := decode(merged)
	if err != nil {
		return Settings{}, err
	}
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// decode applies a settings map over the defaults.
func decode(m map[string]any) (Settings, error) {
	s := Default()
	data, err := toml.Marshal(dropNil(m))
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// dropNil removes empty YAML values, which TOML cannot represent.
func dropNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = dropNil(x)
		default:
			out[k] = v
		}
	}
	return out
}

// Save writes s to path as TOML or YAML by extension.
func Save(path string, s Settings) error {
	if path == "" {
		return ErrNoPath
	}

	var (
		content []byte
		err     error
	)
	if loader.IsYAML(path) {
		content, err = yaml.Marshal(s)
	} else {
		content, err = toml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Dir returns the per-user auxlab directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "auxlab")
	}
	return ".auxlab"
}

// DefaultPath returns the default settings file.
func DefaultPath() string {
	return filepath.Join(Dir(), "settings.toml")
}
