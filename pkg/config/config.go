package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultFile is read when --config is not given. A missing file is not an error.
	DefaultFile = "console-assembly.toml"

	envPrefix = "CONSOLE_ASSEMBLY_"
)

// Config holds the resolved build settings. It is created once by Load and
// passed by value into every task; nothing mutates it afterwards.
type Config struct {
	Root       string `koanf:"root"`
	ProxyPort  int    `koanf:"port"`
	TargetPath string `koanf:"path"`
	Debug      bool   `koanf:"debug"`
	SourceMap  bool   `koanf:"sourcemap"`

	Server    ServerConfig    `koanf:"server"`
	Proxy     ProxyConfig     `koanf:"proxy"`
	Paths     PathsConfig     `koanf:"paths"`
	Bundle    BundleConfig    `koanf:"bundle"`
	Templates TemplatesConfig `koanf:"templates"`
	Vendor    VendorConfig    `koanf:"vendor"`
	Styles    StylesConfig    `koanf:"styles"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the local development server.
type ServerConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	Prefix string `koanf:"prefix"`
}

// ProxyConfig names the upstream backend reached through the dev server.
type ProxyConfig struct {
	Proto    string `koanf:"proto"`
	Hostname string `koanf:"hostname"`
	Route    string `koanf:"route"`
}

// PathsConfig is the project layout, relative to Root.
type PathsConfig struct {
	Src     string `koanf:"src"`
	Temp    string `koanf:"temp"`
	Dist    string `koanf:"dist"`
	License string `koanf:"license"`
}

type BundleConfig struct {
	JS  string `koanf:"js"`
	CSS string `koanf:"css"`
}

type TemplatesConfig struct {
	Module string `koanf:"module"`
}

type VendorConfig struct {
	Yarn      string `koanf:"yarn"`
	Namespace string `koanf:"namespace"`
	UIKit     string `koanf:"uikit"`
}

type StylesConfig struct {
	Lessc string `koanf:"lessc"`
}

type LogConfig struct {
	JSON bool `koanf:"json"`
}

// Defaults returns the built-in settings as a nested map.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"root":      ".",
		"port":      8181,
		"path":      "/hawtio/jolokia",
		"debug":     false,
		"sourcemap": false,
		"server": map[string]interface{}{
			"host":   "localhost",
			"port":   2772,
			"prefix": "/hawtio/",
		},
		"proxy": map[string]interface{}{
			"proto":    "http",
			"hostname": "localhost",
			"route":    "/hawtio/jolokia",
		},
		"paths": map[string]interface{}{
			"src":     "src",
			"temp":    "temp",
			"dist":    "dist",
			"license": "tslint.json",
		},
		"bundle": map[string]interface{}{
			"js":  "hawtio-console-assembly.js",
			"css": "hawtio-console-assembly.css",
		},
		"templates": map[string]interface{}{
			"module": "hawtio-console-assembly-templates",
		},
		"vendor": map[string]interface{}{
			"yarn":      "yarn",
			"namespace": "@hawtio",
			"uikit":     "patternfly",
		},
		"styles": map[string]interface{}{
			"lessc": "",
		},
		"log": map[string]interface{}{
			"json": false,
		},
	}
}

// Default returns the configuration built from the defaults alone.
func Default() Config {
	k := koanf.New(".")
	_ = k.Load(makeMapProvider(Defaults()), nil)

	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return cfg
}

// RegisterFlags adds the command line flags understood by Load.
func RegisterFlags(f *pflag.FlagSet) {
	f.Int("port", 8181, "Port of the backend the dev server proxies to")
	f.String("path", "/hawtio/jolokia", "Path on the backend the proxied route maps to")
	f.Bool("debug", false, "Enable debug logging")
	f.Bool("sourcemap", false, "Generate source maps for compiled TypeScript")
	f.String("root", ".", "Project root directory")
	f.String("config", DefaultFile, "Optional TOML configuration file")
	f.Bool("json-logs", false, "Write logs as JSON")
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"json-logs": "log.json",
	"config":    "",
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file. Only a missing file is tolerated; a broken one is reported.
	path := DefaultFile
	if f != nil {
		if v, err := f.GetString("config"); err == nil && v != "" {
			path = v
		}
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	// 3. Environment Variables
	// Prefix: CONSOLE_ASSEMBLY_ (e.g., CONSOLE_ASSEMBLY_SERVER_PORT=9090)
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		provider := posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, interface{}) {
			key := fl.Name
			if mapped, ok := flagKeys[fl.Name]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(f, fl)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LogLevel is DEBUG when --debug was given and INFO otherwise.
func (c Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (c Config) path(elem ...string) string {
	return filepath.Join(append([]string{c.Root}, elem...)...)
}

func (c Config) SrcDir() string { return c.path(c.Paths.Src) }
func (c Config) TempDir() string { return c.path(c.Paths.Temp) }
func (c Config) DistDir() string { return c.path(c.Paths.Dist) }
func (c Config) DistJS() string { return c.path(c.Paths.Dist, "js") }
func (c Config) DistCSS() string { return c.path(c.Paths.Dist, "css") }
func (c Config) DistLibs() string { return c.path(c.Paths.Dist, "libs") }
func (c Config) DistImg() string { return c.path(c.Paths.Dist, "img") }

// EntryHTML is the page whose build blocks usemin rewrites.
func (c Config) EntryHTML() string { return c.path(c.Paths.Src, "index.html") }

// LicenseFile is the lint configuration carrying the license header.
func (c Config) LicenseFile() string { return c.path(c.Paths.License) }

// NodeModules is where install-dependencies leaves the resolved tree.
func (c Config) NodeModules() string { return c.path(c.Paths.Temp, "node_modules") }

// File resolves a path relative to the project root.
func (c Config) File(name string) string { return c.path(name) }

// ListenAddr is the dev server address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return maps.Unflatten(p.m, "."), nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
