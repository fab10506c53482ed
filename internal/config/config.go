// Package config provides configuration management for sitepipe.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (SITEPIPE_ prefix)
//  3. Config file (.sitepipe.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Supported colour schemes for favicon pre-rendering.
const (
	SchemeNone  = ""
	SchemeLight = "light"
	SchemeDark  = "dark"
)

// Config represents the global configuration for sitepipe.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Root is the project directory all relative paths resolve against.
	Root string `mapstructure:"root" json:"root"`

	// Paths is the path table mapping asset categories to locations.
	Paths Paths `mapstructure:"paths" json:"paths"`

	Styles StyleOptions  `mapstructure:"styles" json:"styles"`
	Images ImageOptions  `mapstructure:"images" json:"images"`
	HTML   HTMLOptions   `mapstructure:"html" json:"html"`
	Server ServerOptions `mapstructure:"server" json:"server"`
	Watch  WatchOptions  `mapstructure:"watch" json:"watch"`
	Cache  CacheOptions  `mapstructure:"cache" json:"cache"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(); not read from the config file.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// StyleOptions configures the stylesheet operation.
type StyleOptions struct {
	// SassBinary is the Dart Sass executable. Empty means look up "sass" on PATH.
	SassBinary string `mapstructure:"sass-binary" yaml:"sass-binary" json:"sassBinary"`

	// IncludePaths are extra load paths for @use/@import resolution.
	IncludePaths []string `mapstructure:"include-paths" yaml:"include-paths" json:"includePaths"`

	// Targets are browser engine targets used for vendor prefixing,
	// e.g. "chrome80", "safari13".
	Targets []string `mapstructure:"targets" yaml:"targets" json:"targets"`
}

// ImageOptions configures the image optimizer.
type ImageOptions struct {
	// JPEGQuality is the re-encode quality (1-100).
	JPEGQuality int `mapstructure:"jpeg-quality" yaml:"jpeg-quality" json:"jpegQuality"`

	// PNGColors is the palette size used for PNG quantization (2-256).
	// Zero disables quantization.
	PNGColors int `mapstructure:"png-colors" yaml:"png-colors" json:"pngColors"`

	// SVG enables SVG minification.
	SVG bool `mapstructure:"svg" yaml:"svg" json:"svg"`
}

// HTMLOptions configures the page operations.
type HTMLOptions struct {
	// IncludePrefix marks include directives and variables.
	IncludePrefix string `mapstructure:"include-prefix" yaml:"include-prefix" json:"includePrefix"`

	// ColorScheme pre-renders the favicon reference for this scheme
	// (light or dark). Empty leaves pages untouched.
	ColorScheme string `mapstructure:"color-scheme" yaml:"color-scheme" json:"colorScheme"`
}

// ServerOptions configures the development server.
type ServerOptions struct {
	Host  string `mapstructure:"host" yaml:"host" json:"host"`
	Port  int    `mapstructure:"port" yaml:"port" json:"port"`
	Index string `mapstructure:"index" yaml:"index" json:"index"`
}

// WatchOptions configures the file watcher.
type WatchOptions struct {
	// Debounce is the quiet period before a rule re-runs its operation.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// CacheOptions configures the build cache.
type CacheOptions struct {
	// Path is the cache database file. Empty means the user cache directory.
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
		NoColor:   false,
		Quiet:     false,
		Root:      ".",
		Paths:     DefaultPaths(),
		Styles: StyleOptions{
			IncludePaths: []string{"node_modules"},
			Targets:      DefaultTargets(),
		},
		Images: ImageOptions{
			JPEGQuality: 85,
			PNGColors:   256,
			SVG:         true,
		},
		HTML: HTMLOptions{
			IncludePrefix: "@@",
		},
		Server: ServerOptions{
			Host:  "localhost",
			Port:  3000,
			Index: "index.html",
		},
		Watch: WatchOptions{
			Debounce: 100 * time.Millisecond,
		},
	}
}

// DefaultTargets returns the browser engine targets used for prefixing.
func DefaultTargets() []string {
	return []string{"chrome87", "edge88", "firefox78", "safari14"}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if err := c.Paths.Validate(); err != nil {
		return err
	}

	switch c.HTML.ColorScheme {
	case SchemeNone, SchemeLight, SchemeDark:
		// valid
	default:
		return fmt.Errorf("invalid color scheme %q: must be one of light, dark", c.HTML.ColorScheme)
	}

	if c.HTML.IncludePrefix == "" {
		return fmt.Errorf("html include prefix must not be empty")
	}

	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality %d: must be between 1 and 100", c.Images.JPEGQuality)
	}

	if c.Images.PNGColors != 0 && (c.Images.PNGColors < 2 || c.Images.PNGColors > 256) {
		return fmt.Errorf("invalid png colors %d: must be 0 or between 2 and 256", c.Images.PNGColors)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch debounce %s: must not be negative", c.Watch.Debounce)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Resolve returns p joined to the project root unless p is absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// CachePath returns the effective cache database location.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Resolve(c.Cache.Path), nil
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache dir: %w", err)
	}

	return filepath.Join(dir, "sitepipe", "cache.db"), nil
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", d.NoColor)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("root", d.Root)

	v.SetDefault("paths.src", d.Paths.Src)
	v.SetDefault("paths.dist", d.Paths.Dist)
	v.SetDefault("paths.scripts.dev", d.Paths.Scripts.Dev)
	v.SetDefault("paths.scripts.dist", d.Paths.Scripts.Dist)
	v.SetDefault("paths.scripts.main", d.Paths.Scripts.Main)
	v.SetDefault("paths.styles.dev", d.Paths.Styles.Dev)
	v.SetDefault("paths.styles.dist", d.Paths.Styles.Dist)
	v.SetDefault("paths.styles.main", d.Paths.Styles.Main)
	v.SetDefault("paths.fonts.dev", d.Paths.Fonts.Dev)
	v.SetDefault("paths.fonts.dist", d.Paths.Fonts.Dist)
	v.SetDefault("paths.images.dev", d.Paths.Images.Dev)
	v.SetDefault("paths.images.dist", d.Paths.Images.Dist)
	v.SetDefault("paths.html.dev", d.Paths.HTML.Dev)
	v.SetDefault("paths.html.dist", d.Paths.HTML.Dist)
	v.SetDefault("paths.html.watch", d.Paths.HTML.Watch)

	v.SetDefault("styles.sass-binary", d.Styles.SassBinary)
	v.SetDefault("styles.include-paths", d.Styles.IncludePaths)
	v.SetDefault("styles.targets", d.Styles.Targets)

	v.SetDefault("images.jpeg-quality", d.Images.JPEGQuality)
	v.SetDefault("images.png-colors", d.Images.PNGColors)
	v.SetDefault("images.svg", d.Images.SVG)

	v.SetDefault("html.include-prefix", d.HTML.IncludePrefix)
	v.SetDefault("html.color-scheme", d.HTML.ColorScheme)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.index", d.Server.Index)

	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("cache.path", d.Cache.Path)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("SITEPIPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".sitepipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "sitepipe"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// flagKeys maps command-line flag names onto nested config keys.
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"debounce":   "watch.debounce",
	"cache-path": "cache.path",
	"sass":       "styles.sass-binary",
	"scheme":     "html.color-scheme",
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for name, key := range flagKeys {
		if f := lookupFlag(cmd, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %q: %w", name, err)
			}
		}
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// lookupFlag finds name among cmd's own flags or the persistent flags of
// cmd and its parents, whether or not cobra has merged them yet.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}

	for c := cmd; c != nil; c = c.Parent() {
		if f := c.PersistentFlags().Lookup(name); f != nil {
			return f
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
