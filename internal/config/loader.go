package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config file locations.
const (
	// GlobalConfigDir is the directory under $XDG_CONFIG_HOME (or ~/.config).
	GlobalConfigDir = "griddash"
	// ProjectConfigDir is the directory in the working directory.
	ProjectConfigDir = ".griddash"
	// ConfigFile is the file name used in both directories.
	ConfigFile = "config.yaml"
)

// layer is one config file merged over the defaults.
type layer struct {
	path     string
	required bool
}

// LoadConfig loads configuration from files and viper settings.
// Precedence (later overrides earlier):
//  1. Default() values
//  2. ~/.config/griddash/config.yaml (global)
//  3. .griddash/config.yaml (project)
//  4. the file named by the "config" key (--config or GRIDDASH_CONFIG), which must exist
//  5. Environment variables (GRIDDASH_*)
//  6. CLI flags (already bound to viper)
//
// Missing global and project files are ignored.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaults, err := structToMap(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	for _, l := range layers(v) {
		if err := mergeFile(v, l); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg, viperDecodeHook()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// layers lists the config files to merge, lowest precedence first.
func layers(v *viper.Viper) []layer {
	var out []layer
	if p := GlobalConfigPath(); p != "" {
		out = append(out, layer{path: p})
	}
	out = append(out, layer{path: filepath.Join(ProjectConfigDir, ConfigFile)})
	if p := v.GetString("config"); p != "" {
		out = append(out, layer{path: p, required: true})
	}
	return out
}

// GlobalConfigPath returns where the global config file would live, or ""
// when no home directory is known.
func GlobalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, GlobalConfigDir, ConfigFile)
}

// mergeFile reads one YAML file into v.
func mergeFile(v *viper.Viper, l layer) error {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) && !l.required {
			return nil
		}
		return fmt.Errorf("open config %s: %w", l.path, err)
	}
	defer func() { _ = file.Close() }()

	fileViper := viper.New()
	fileViper.SetConfigType("yaml")
	if err := fileViper.ReadConfig(file); err != nil {
		return fmt.Errorf("parse config %s: %w", l.path, err)
	}
	return v.MergeConfigMap(fileViper.AllSettings())
}

// ResolvePaths makes the tables and log paths absolute, relative to
// basePath or the working directory when basePath is empty.
func ResolvePaths(cfg *Config, basePath string) error {
	if basePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		basePath = wd
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(basePath, p)
	}
	cfg.Tables = resolve(cfg.Tables)
	cfg.Paths.Log = resolve(cfg.Paths.Log)
	return nil
}

// viperDecodeHook returns the decoder config with duration hook.
func viperDecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// structToMap converts a struct to a map for viper.MergeConfigMap.
func structToMap(cfg *Config) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     &result,
		DecodeHook: durationToStringHook(),
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	return result, nil
}

// durationToStringHook converts time.Duration to string for YAML compatibility.
func durationToStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return data.(time.Duration).String(), nil
	}
}
