// Package config loads myedit settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the host and client configuration.
type Config struct {
	Socket     SocketConfig
	Extensions ExtensionsConfig
	Log        LogConfig
	Web        WebConfig
	LSP        LSPConfig
	Highlight  HighlightConfig
}

// SocketConfig holds the unix socket paths shared by host and clients.
type SocketConfig struct {
	Session string
	Command string
}

// ExtensionsConfig says where module artifacts live.
type ExtensionsConfig struct {
	// Dir is scanned at startup and watched for rebuilt artifacts.
	Dir string
	// CopyDir receives the private copy opened for every load.
	CopyDir string `mapstructure:"copy_dir"`
	// Builtin links the bundled modules into the host instead of loading
	// them from Dir.
	Builtin  bool
	Debounce time.Duration
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	File  string
	Level string
}

// WebConfig holds the browser bridge settings. An empty Addr disables it.
type WebConfig struct {
	Addr string
}

// LSPConfig holds language server settings.
type LSPConfig struct {
	Enabled bool
}

// HighlightConfig holds syntax colouring settings.
type HighlightConfig struct {
	Style string
}

// EnvConfig names the variable pointing at an explicit config file.
const EnvConfig = "MYEDIT_CONFIG"

// New returns a viper instance with every default set and env overrides
// enabled. Env var overrides use prefix MYEDIT_, eg MYEDIT_SOCKET_SESSION.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("socket.session", "/tmp/myedit-stdin")
	v.SetDefault("socket.command", "/tmp/myedit-core")
	v.SetDefault("extensions.dir", filepath.Join("plugins", "out"))
	v.SetDefault("extensions.copy_dir", filepath.Join(os.TempDir(), "myedit-modules"))
	v.SetDefault("extensions.builtin", false)
	v.SetDefault("extensions.debounce", 200*time.Millisecond)
	v.SetDefault("log.file", filepath.Join(os.TempDir(), "myedit.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("web.addr", "")
	v.SetDefault("lsp.enabled", true)
	v.SetDefault("highlight.style", "monokai")

	v.SetConfigType("toml")
	v.SetEnvPrefix("MYEDIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads path, or MYEDIT_CONFIG, or ~/.config/myedit/config.toml, on
// top of the defaults. Only an explicitly named file has to exist.
func Load(v *viper.Viper, path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "myedit"))
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Logger builds the process logger described by c.
func (c LogConfig) Logger() (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		log.SetOutput(f)
	}
	return log, nil
}
