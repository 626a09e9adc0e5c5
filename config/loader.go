package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SIGSLOT_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// DefaultSearchPaths are tried in order when no config path is given.
var DefaultSearchPaths = []string{
	"sigslot.yaml",
	"sigslot.yml",
	"sigslot.json",
	"configs/sigslot.yaml",
	"/etc/sigslot/config.yaml",
}

// Loader layers defaults, a config file, environment variables and
// explicit overrides into a Config.
type Loader struct {
	k    *koanf.Koanf
	used string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load builds a Config. Later sources win:
// defaults < file < SIGSLOT_* environment < overrides.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	l.k = koanf.New(Delimiter)
	l.used = ""

	if err := l.k.Load(confmap.Provider(structToMap(DefaultConfig(), ""), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := l.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else if err := l.loadDefaultFiles(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.k.Load(env.Provider(EnvPrefix, Delimiter, envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Source returns the config file used by the last Load, or "" when the
// configuration came from defaults and the environment only.
func (l *Loader) Source() string {
	return l.used
}

func (l *Loader) loadFile(path string) error {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not found: %s", path)
	}
	if err := l.k.Load(file.Provider(path), parser); err != nil {
		return err
	}
	l.used = path
	return nil
}

// loadDefaultFiles loads the first existing file of DefaultSearchPaths.
// A file that exists but does not parse is an error.
func (l *Loader) loadDefaultFiles() error {
	for _, path := range DefaultSearchPaths {
		if _, err := os.Stat(path); err == nil {
			return l.loadFile(path)
		}
	}
	return nil
}

// envKey maps SIGSLOT_DISPATCH_LOG_EVENTS to dispatch.log_events. The first
// underscore separates the section, the rest belong to the field name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + Delimiter + field
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// GetString returns a string configuration value.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt returns an int configuration value.
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetBool returns a bool configuration value.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// Print renders the merged key space.
func (l *Loader) Print() string {
	return l.k.Sprint()
}

var durationType = reflect.TypeOf(time.Duration(0))

// structToMap flattens a struct into dot-separated keys using its
// mapstructure tags.
func structToMap(v interface{}, prefix string) map[string]interface{} {
	result := make(map[string]interface{})
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return result
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + Delimiter + key
		}

		fv := val.Field(i)
		switch {
		case fv.Type() == durationType:
			result[key] = fv.Interface()
		case fv.Kind() == reflect.Struct:
			for k, nested := range structToMap(fv.Interface(), key) {
				result[k] = nested
			}
		case fv.Kind() == reflect.Map:
			if fv.Len() > 0 {
				result[key] = fv.Interface()
			}
		default:
			result[key] = fv.Interface()
		}
	}
	return result
}

// Load is a convenience function to load configuration.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}

// LoadOrDie loads configuration and panics on error.
func LoadOrDie(configPath string, overrides map[string]interface{}) *Config {
	cfg, err := Load(configPath, overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
