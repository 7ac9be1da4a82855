package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Environment overrides, read after the config file is parsed.
const (
	EnvConfigPath = "ANNOGRAPH_CONFIG"
	EnvDataDir    = "ANNOGRAPH_DATA_DIR"
)

type Config struct {
	Input    Input    `yaml:"input"`
	Analysis Analysis `yaml:"analysis"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Input struct {
	Path string `yaml:"path"`
}

type Analysis struct {
	SentimentHigh       float64    `yaml:"sentiment_high"`
	SentimentLow        float64    `yaml:"sentiment_low"`
	LengthBuckets       int        `yaml:"length_buckets"`
	TopN                int        `yaml:"top_n"`
	TopicCount          int        `yaml:"topic_count"`
	ClusterThreshold    float64    `yaml:"cluster_threshold"`
	ClusterMaxDocuments int        `yaml:"cluster_max_documents"`
	NetworkMinWeight    int        `yaml:"network_min_weight"`
	Workers             int        `yaml:"workers"`
	NodeSize            NodeSizing `yaml:"node_size"`
}

type NodeSizing struct {
	Base float64 `yaml:"base"`
	Step float64 `yaml:"step"`
	Max  float64 `yaml:"max"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for annograph.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "annograph")
}

// DataDir returns the XDG data directory for annograph.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "annograph")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $ANNOGRAPH_CONFIG > ~/.config/annograph/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(EnvConfigPath)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'annograph init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		// parse(nil) never reaches the YAML decoder's error paths.
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Analysis: Analysis{
			SentimentHigh:       0.6,
			SentimentLow:        0.4,
			LengthBuckets:       10,
			TopN:                50,
			TopicCount:          10,
			ClusterThreshold:    1.0,
			ClusterMaxDocuments: 500,
			NetworkMinWeight:    1,
			Workers:             8,
			NodeSize:            NodeSizing{Base: 30, Step: 3, Max: 80},
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.Output.DataDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the analysis cannot work with.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.SentimentHigh <= a.SentimentLow {
		return fmt.Errorf("analysis.sentiment_high (%v) must be greater than analysis.sentiment_low (%v)",
			a.SentimentHigh, a.SentimentLow)
	}
	if a.LengthBuckets < 1 {
		return fmt.Errorf("analysis.length_buckets must be at least 1, got %d", a.LengthBuckets)
	}
	if a.NodeSize.Max < a.NodeSize.Base {
		return fmt.Errorf("analysis.node_size.max (%v) is below base (%v)", a.NodeSize.Max, a.NodeSize.Base)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
