package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of auxlab environment variables.
const EnvPrefix = "AUXLAB_"

// EnvLoader loads settings from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "AUXLAB_")
	mapping map[string]string // Env var -> settings path
	lookup  func(string) (string, bool)
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "AUXLAB_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the short names that do not follow the
// SECTION_KEY convention.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "SAMPLE_RATE":  "engine.sample_rate",
		prefix + "UDF_PATHS":    "engine.udf_paths",
		prefix + "PRECISION":    "display.precision",
		prefix + "LOG_LEVEL":    "console.log_level",
		prefix + "HISTORY_FILE": "console.history_file",
		prefix + "SETTINGS":     "",
	}
}

// AddMapping adds a custom environment variable mapping. An empty path
// makes the loader ignore the variable.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Load reads environment variables and returns a settings map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	settings := make(map[string]any)

	// First, load explicitly mapped variables
	for env, path := range l.mapping {
		if path == "" {
			continue
		}
		if val, ok := l.lookup(env); ok {
			setByPath(settings, path, parseValue(path, val))
		}
	}

	// Then, scan for additional prefixed variables not in mapping
	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if _, mapped := l.mapping[name]; mapped {
			continue
		}
		path := l.envToPath(name)
		if path == "" {
			continue
		}
		setByPath(settings, path, parseValue(path, value))
	}

	return settings, nil
}

// envToPath converts AUXLAB_DISPLAY_LIMIT_X to display.limit_x.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue converts a variable to the type its setting expects. Path
// lists use the OS list separator or a JSON array.
func parseValue(path, s string) any {
	if strings.HasSuffix(path, "_paths") {
		if strings.HasPrefix(s, "[") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return list
			}
		}
		parts := filepath.SplitList(s)
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			list = append(list, p)
		}
		return list
	}

	lower := strings.ToLower(s)
	switch lower {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	// Navigate/create intermediate maps
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
