package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the persisted configuration
type Config struct {
	Video      VideoConfig    `json:"video" yaml:"video"`
	Render     RenderConfig   `json:"render" yaml:"render"`
	Capture    CaptureConfig  `json:"capture" yaml:"capture"`
	Theme      ThemeConfig    `json:"theme" yaml:"theme"`
	DevTools   DevToolsConfig `json:"devtools" yaml:"devtools"`
	Hotkey     HotkeyConfig   `json:"hotkey" yaml:"hotkey"`
	Output     OutputConfig   `json:"output" yaml:"output"`
	ServerPort int            `json:"server_port" yaml:"server_port"`
	LogLevel   string         `json:"log_level" yaml:"log_level"`
}

// VideoConfig describes the video asset
type VideoConfig struct {
	Path    string  `json:"path" yaml:"path"`
	Width   int     `json:"width" yaml:"width"`
	Height  int     `json:"height" yaml:"height"`
	Decoder string  `json:"decoder" yaml:"decoder"` // gstreamer or ffmpeg
	Volume  float64 `json:"volume" yaml:"volume"`
}

// RenderConfig holds compositing parameters
type RenderConfig struct {
	RefreshHz int     `json:"refresh_hz" yaml:"refresh_hz"`
	Margin    float64 `json:"margin" yaml:"margin"`
	AnchorX   float64 `json:"anchor_x" yaml:"anchor_x"`
	AnchorY   float64 `json:"anchor_y" yaml:"anchor_y"`
}

// CaptureConfig selects how host snapshots are taken
type CaptureConfig struct {
	// Backend is x11, devtools, portal or auto (try each in that order)
	Backend       string `json:"backend" yaml:"backend"`
	HostName      string `json:"host_name" yaml:"host_name"`
	SettleDelayMs int    `json:"settle_delay_ms" yaml:"settle_delay_ms"`
}

// ThemeConfig selects how the host theme is switched
type ThemeConfig struct {
	// Backend is devtools, desktop or memory
	Backend    string   `json:"backend" yaml:"backend"`
	LightClass string   `json:"light_class" yaml:"light_class"`
	DarkClass  string   `json:"dark_class" yaml:"dark_class"`
	LightCmd   []string `json:"light_cmd" yaml:"light_cmd"`
	DarkCmd    []string `json:"dark_cmd" yaml:"dark_cmd"`
}

// DevToolsConfig points at the host's remote debugging endpoint
type DevToolsConfig struct {
	URL       string `json:"url" yaml:"url"`
	PageTitle string `json:"page_title" yaml:"page_title"`
}

// HotkeyConfig holds the toggle key
type HotkeyConfig struct {
	Key     string `json:"key" yaml:"key"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// OutputConfig selects where frames go
type OutputConfig struct {
	// Backend is x11, mjpeg or discard
	Backend string `json:"backend" yaml:"backend"`
	Quality int    `json:"quality" yaml:"quality"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/silhouette/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "silhouette", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("video", m.config.Video.Path).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Video: VideoConfig{
			Path:    "badapple.webm",
			Width:   962,
			Height:  720,
			Decoder: "gstreamer",
			Volume:  0.4,
		},
		Render: RenderConfig{
			RefreshHz: 60,
			Margin:    5,
			AnchorX:   0.5,
			AnchorY:   0.5,
		},
		Capture: CaptureConfig{
			Backend:       "auto",
			HostName:      "Discord",
			SettleDelayMs: 500,
		},
		Theme: ThemeConfig{
			Backend:    "devtools",
			LightClass: "theme-light",
			DarkClass:  "theme-dark",
			LightCmd:   []string{"gsettings", "set", "org.gnome.desktop.interface", "color-scheme", "prefer-light"},
			DarkCmd:    []string{"gsettings", "set", "org.gnome.desktop.interface", "color-scheme", "prefer-dark"},
		},
		DevTools: DevToolsConfig{
			URL:       "http://127.0.0.1:9222",
			PageTitle: "Discord",
		},
		Hotkey: HotkeyConfig{
			Key:     "F7",
			Enabled: true,
		},
		Output: OutputConfig{
			Backend: "x11",
			Quality: 80,
		},
		ServerPort: 8080,
		LogLevel:   "info",
	}
}

// load reads the configuration from disk. Missing keys keep their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	cfg := *m.config
	cfg.Theme.LightCmd = append([]string(nil), m.config.Theme.LightCmd...)
	cfg.Theme.DarkCmd = append([]string(nil), m.config.Theme.DarkCmd...)
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// GetViper returns a viper instance holding the current configuration.
// Keys are the dotted yaml paths, for example "video.volume".
func (m *Manager) GetViper() (*viper.Viper, error) {
	return toViper(m.Get())
}

func toViper(cfg *Config) (*viper.Viper, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load config into viper: %w", err)
	}
	return v, nil
}

// Lookup returns the value of a dotted key. A section name such as "video"
// returns the whole section as a map.
func (m *Manager) Lookup(key string) (interface{}, error) {
	v, err := m.GetViper()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return v.Get(key), nil
}

// Keys lists every dotted leaf key in sorted order.
func (m *Manager) Keys() ([]string, error) {
	v, err := m.GetViper()
	if err != nil {
		return nil, err
	}
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys, nil
}

// DefaultValue returns the default of a dotted key.
func DefaultValue(key string) (interface{}, error) {
	v, err := toViper(Defaults())
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return v.Get(key), nil
}

// Reset restores key to its default. An empty key restores everything.
func (m *Manager) Reset(key string) error {
	if key == "" {
		return m.Update(Defaults())
	}
	def, err := DefaultValue(key)
	if err != nil {
		return err
	}
	return m.Set(key, def)
}

// Set changes one dotted key, validates the result and saves it.
func (m *Manager) Set(key string, value interface{}) error {
	v, err := m.GetViper()
	if err != nil {
		return err
	}
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	v.Set(key, value)

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Update(cfg)
}

// SetString parses raw according to the type of the current value of key
// and stores it. Lists are comma separated.
func (m *Manager) SetString(key, raw string) error {
	v, err := m.GetViper()
	if err != nil {
		return err
	}
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	var value interface{}
	switch v.Get(key).(type) {
	case int, int64:
		// whole-number floats such as render.margin read back as ints
		if value, err = cast.ToIntE(raw); err != nil {
			value, err = cast.ToFloat64E(raw)
		}
	case float64:
		value, err = cast.ToFloat64E(raw)
	case bool:
		value, err = cast.ToBoolE(raw)
	case []interface{}:
		value = splitList(raw)
	default:
		value = raw
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Set(key, value)
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort gets the server port
func (m *Manager) GetPort() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ServerPort
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetLogLevel gets the log level
func (m *Manager) GetLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.LogLevel
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
