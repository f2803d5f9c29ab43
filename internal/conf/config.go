// config.go: settings struct and functions to load and save application settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServiceSettings contains settings for the inference backend service.
type ServiceSettings struct {
	BaseURL   string // base URL of the inference service, e.g. http://127.0.0.1:8000
	Timeout   int    // upper bound on inference wait in seconds
	UserAgent string // User-Agent header for outbound requests
}

// ReportSettings contains settings for the report generation service.
type ReportSettings struct {
	Endpoint string // report generation endpoint path
	Filename string // suggested filename for downloaded reports
	Timeout  int    // report generation timeout in seconds
}

// ProbeSettings contains settings for the model capability probe.
type ProbeSettings struct {
	Endpoint string // capability probe endpoint path
	Timeout  int    // probe timeout in seconds
	CacheTTL int    // probe result cache time-to-live in seconds
}

// GatewaySettings contains settings for the local web gateway.
type GatewaySettings struct {
	Enabled bool   // true to enable the local gateway
	Listen  string // IP address and port to listen on
}

// SQLiteSettings contains SQLite history database settings.
type SQLiteSettings struct {
	Enabled bool   // true to enable history persistence
	Path    string // path to the SQLite database file
}

// OutputSettings contains result persistence settings.
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite history database settings
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // Path to the log file
	Rotation RotationType // Type of log rotation
	MaxSize  int64        // Max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// MainSettings contains top-level application settings.
type MainSettings struct {
	Name string    // name of the node
	Log  LogConfig // main log settings
}

// Settings is the root configuration struct.
type Settings struct {
	Debug bool // true to enable debug logging

	Main    MainSettings    // top-level application settings
	Service ServiceSettings // inference backend settings
	Probe   ProbeSettings   // capability probe settings
	Report  ReportSettings  // report export settings
	Gateway GatewaySettings // local gateway settings
	Output  OutputSettings  // result persistence settings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("endoscopy")
	viper.AutomaticEnv()

	// Set default values for each configuration parameter, defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a default config file to the first default config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling default config: %w", err)
	}
	yamlData, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("error marshaling default config to YAML: %w", err)
	}
	if err := os.WriteFile(configPath, yamlData, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the candidate config directories in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "endoscopy-go"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "endoscopy-go"))
	}
	paths = append(paths, ".")

	if len(paths) == 0 {
		return nil, fmt.Errorf("no config paths found")
	}
	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to the given config file path atomically.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first for an atomic replace
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()
	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}
	if err := os.Rename(tempName, configPath); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
