package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/rendis/erdstudio/internal/activity"
	"github.com/rendis/erdstudio/internal/export"
	"github.com/rendis/erdstudio/internal/scheduler"
	"github.com/rendis/erdstudio/internal/synth"
	"github.com/rendis/erdstudio/internal/validation"
)

const envPrefix = "ERDSTUDIO_"

// Config holds all erdstudio settings.
// Priority: flags > env vars > settings file > defaults.
type Config struct {
	ListenAddr    string `koanf:"listen_addr"`
	DBPath        string `koanf:"db_path"`
	LogLevel      string `koanf:"log_level"`
	LogFormat     string `koanf:"log_format"`
	SessionSecret string `koanf:"session_secret"`
	SecureCookies bool   `koanf:"secure_cookies"`

	Extract struct {
		Mode string `koanf:"mode"`
	} `koanf:"extract"`

	Gemini struct {
		BaseURL string        `koanf:"base_url"`
		Model   string        `koanf:"model"`
		APIKey  string        `koanf:"api_key"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"gemini"`

	Export struct {
		Padding   float64 `koanf:"padding"`
		Scale     float64 `koanf:"scale"`
		MaxPixels int64   `koanf:"max_pixels"`
	} `koanf:"export"`

	Activity struct {
		Keep   int `koanf:"keep"`
		Buffer int `koanf:"buffer"`
	} `koanf:"activity"`

	Maintenance struct {
		Schedule string `koanf:"schedule"`
	} `koanf:"maintenance"`

	// File is the settings file that was loaded, if any.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"listen_addr":          ":8080",
		"db_path":              filepath.Join(erdstudioDir(), "erdstudio.db"),
		"log_level":            "info",
		"log_format":           "text",
		"session_secret":       "",
		"secure_cookies":       false,
		"extract.mode":         "ddl",
		"gemini.base_url":      synth.DefaultGeminiBaseURL,
		"gemini.model":         synth.DefaultGeminiModel,
		"gemini.api_key":       "",
		"gemini.timeout":       synth.DefaultGeminiTimeout.String(),
		"export.padding":       float64(export.DefaultPadding),
		"export.scale":         float64(export.DefaultScale),
		"export.max_pixels":    int64(export.DefaultOptions().MaxPixels),
		"activity.keep":        activity.DefaultKeep,
		"activity.buffer":      activity.DefaultBuffer,
		"maintenance.schedule": scheduler.DefaultSchedule,
	}
}

func erdstudioDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".erdstudio"
	}
	return filepath.Join(home, ".erdstudio")
}

func settingsPath() string {
	return filepath.Join(erdstudioDir(), "settings.yaml")
}

// flagKeys maps CLI flag names to settings keys. Flags not listed here are
// command options, not settings.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"log-format":   "log_format",
	"listen":       "listen_addr",
	"db-path":      "db_path",
	"extract-mode": "extract.mode",
	"model":        "gemini.model",
	"padding":      "export.padding",
	"scale":        "export.scale",
}

// boolKeys and numericKeys are coerced from env strings before schema
// validation.
var boolKeys = map[string]bool{
	"secure_cookies": true,
}

var numericKeys = map[string]bool{
	"export.padding":    true,
	"export.scale":      true,
	"export.max_pixels": true,
	"activity.keep":     true,
	"activity.buffer":   true,
}

// loadConfig merges every layer, validates the merged tree and decodes it.
// An explicit cfgFile must exist; the default settings file is optional.
func loadConfig(cfgFile string, flags *pflag.FlagSet, lookupEnv func(string) (string, bool)) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(settingsPath()); err == nil {
			path = settingsPath()
		}
	}
	if path != "" {
		// The yaml parser also reads JSON documents.
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read settings file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	if k.String("gemini.api_key") == "" && lookupEnv != nil {
		if v, ok := lookupEnv("GEMINI_API_KEY"); ok && v != "" {
			if err := k.Set("gemini.api_key", v); err != nil {
				return nil, err
			}
		}
	}

	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateSettings(k.Raw()); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	cfg.File = path
	return &cfg, nil
}

// envKey turns ERDSTUDIO_GEMINI__API_KEY into gemini.api_key.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if boolKeys[key] {
		if b, err := strconv.ParseBool(value); err == nil {
			return key, b
		}
	}
	if numericKeys[key] {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return key, n
		}
	}
	return key, value
}
