package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const configDir = ".research"
const configFile = "config.json"

// DefaultEndpoint is the local address the research service listens on.
const DefaultEndpoint = "http://localhost:8000"

type Config struct {
	Endpoint      string `json:"endpoint,omitempty"`
	Speech        bool   `json:"speech,omitempty"`
	SpeakCommand  string `json:"speak_command,omitempty"`
	ListenCommand string `json:"listen_command,omitempty"`
	LogFile       string `json:"log_file,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
	Profile       string `json:"-"`

	// values read from the environment; never written back
	envEndpoint string
	envSpeech   *bool
	envLevel    string
}

// Keys lists the settings accepted by Set.
var Keys = []string{"endpoint", "speech", "speak-command", "listen-command", "log-file", "log-level"}

func configPath(profile string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	filename := configFile
	if profile != "" {
		filename = fmt.Sprintf("config-%s.json", profile)
	}
	return filepath.Join(home, configDir, filename), nil
}

// Load reads the profile's config file and applies environment overrides.
// A missing file yields an empty config with defaults.
func Load(profile string) (*Config, error) {
	path, err := configPath(profile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg.Profile = profile
	cfg.loadEnv()
	return cfg, nil
}

func (c *Config) loadEnv() {
	c.envEndpoint = getEnv("RESEARCH_ENDPOINT", "")
	if v := os.Getenv("RESEARCH_SPEECH"); v != "" {
		b := getBoolEnv("RESEARCH_SPEECH", false)
		c.envSpeech = &b
	}
	c.envLevel = getEnv("RESEARCH_LOG_LEVEL", "")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

// BaseURL returns the effective endpoint without a trailing slash.
func (c *Config) BaseURL() string {
	ep := c.Endpoint
	if c.envEndpoint != "" {
		ep = c.envEndpoint
	}
	if ep == "" {
		ep = DefaultEndpoint
	}
	return strings.TrimRight(ep, "/")
}

// SpeechEnabled reports whether spoken output is on.
func (c *Config) SpeechEnabled() bool {
	if c.envSpeech != nil {
		return *c.envSpeech
	}
	return c.Speech
}

// Level returns the effective log level name.
func (c *Config) Level() string {
	lvl := c.LogLevel
	if c.envLevel != "" {
		lvl = c.envLevel
	}
	if lvl == "" {
		return "info"
	}
	return strings.ToLower(lvl)
}

// LogPath returns the log file location, defaulting to the config directory.
func (c *Config) LogPath() (string, error) {
	if c.LogFile != "" {
		return c.LogFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, configDir, "research.log"), nil
}

func (c *Config) Save() error {
	path, err := configPath(c.Profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Set updates one setting by its CLI key name.
func (c *Config) Set(key, value string) error {
	switch key {
	case "endpoint":
		if err := validateEndpoint(value); err != nil {
			return err
		}
		c.Endpoint = strings.TrimRight(value, "/")
	case "speech":
		switch strings.ToLower(value) {
		case "on", "true", "1", "yes":
			c.Speech = true
		case "off", "false", "0", "no":
			c.Speech = false
		default:
			return fmt.Errorf("invalid speech value %q (use on or off)", value)
		}
	case "speak-command":
		c.SpeakCommand = value
	case "listen-command":
		c.ListenCommand = value
	case "log-file":
		c.LogFile = value
	case "log-level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(value)
		default:
			return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", value)
		}
	default:
		return fmt.Errorf("unknown config key: %s (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

func (c *Config) profileFlag() string {
	if c.Profile == "" {
		return ""
	}
	return " --profile " + c.Profile
}

func (c *Config) Validate() error {
	if err := validateEndpoint(c.BaseURL()); err != nil {
		return fmt.Errorf("%w. Run: research%s set endpoint <url>", err, c.profileFlag())
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	return nil
}

func ListProfiles() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot find home directory: %w", err)
	}
	dir := filepath.Join(home, configDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var profiles []string
	for _, e := range entries {
		name := e.Name()
		if name == configFile {
			profiles = append(profiles, "default")
			continue
		}
		if strings.HasPrefix(name, "config-") && strings.HasSuffix(name, ".json") {
			profiles = append(profiles, strings.TrimSuffix(strings.TrimPrefix(name, "config-"), ".json"))
		}
	}
	return profiles, nil
}

func ProfileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
