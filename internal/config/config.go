package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the PubChem PUG REST root.
const DefaultBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

// Config holds application configuration.
type Config struct {
	// BaseURL is the PUG REST root used by the compound client.
	BaseURL string `json:"base_url,omitempty"`

	// UserAgent is sent with every PubChem request.
	UserAgent string `json:"user_agent,omitempty"`

	// RequestTimeoutMs bounds a single HTTP request to PubChem.
	RequestTimeoutMs int `json:"request_timeout_ms,omitempty"`

	// RequestIntervalMs is the pause after each identifier in a batch.
	// PubChem asks clients to stay under 5 requests per second; each identifier
	// costs two or three requests, so the default leaves generous headroom.
	RequestIntervalMs int `json:"request_interval_ms,omitempty"`

	// MaxRetries is the total number of attempts (including the first) the
	// resolver makes when PubChem is unreachable.
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryDelayMs is the pause between resolver attempts.
	RetryDelayMs int `json:"retry_delay_ms,omitempty"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "console" (human-readable, stderr) or "json".
	LogFormat string `json:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         "chemfetch",
		RequestTimeoutMs:  5000,
		RequestIntervalMs: 3000,
		MaxRetries:        3,
		RetryDelayMs:      5000,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// RequestTimeout returns RequestTimeoutMs as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// RequestInterval returns RequestIntervalMs as a duration.
func (c *Config) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalMs) * time.Millisecond
}

// RetryDelay returns RetryDelayMs as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.chemfetch.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.chemfetch) and repo (.chemfetch) directories.
// Repo config is found by walking upward from startDir to find the nearest .chemfetch/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .chemfetch/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".chemfetch", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		BaseURL:           pickString(overlay.BaseURL, base.BaseURL),
		UserAgent:         pickString(overlay.UserAgent, base.UserAgent),
		RequestTimeoutMs:  pickInt(overlay.RequestTimeoutMs, base.RequestTimeoutMs),
		RequestIntervalMs: pickInt(overlay.RequestIntervalMs, base.RequestIntervalMs),
		MaxRetries:        pickInt(overlay.MaxRetries, base.MaxRetries),
		RetryDelayMs:      pickInt(overlay.RetryDelayMs, base.RetryDelayMs),
		LogLevel:          pickString(overlay.LogLevel, base.LogLevel),
		LogFormat:         pickString(overlay.LogFormat, base.LogFormat),
		DBMaxOpenConns:    pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:    pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		DisabledTools:     mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

// pickInt returns overlay if non-zero, else base.
func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// pickString returns overlay if non-blank, else base.
func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
