// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Transport TransportConfig `mapstructure:"transport"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Debug   bool   `mapstructure:"debug"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// TransportConfig selects and configures the instrument transport.
// Kind is chosen once at session open; every later operation goes
// through the transport picked here.
type TransportConfig struct {
	Kind string     `mapstructure:"kind"` // "bulk" or "line"
	USB  USBConfig  `mapstructure:"usb"`
	Line LineConfig `mapstructure:"line"`
}

// USBConfig represents the native bulk-endpoint transport configuration
type USBConfig struct {
	VendorID     string        `mapstructure:"vendor_id"`
	ProductID    string        `mapstructure:"product_id"`
	OutEndpoint  int           `mapstructure:"out_endpoint"`
	InEndpoint   int           `mapstructure:"in_endpoint"`
	TransferSize int           `mapstructure:"transfer_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LineConfig represents the line-oriented fallback transport configuration.
// Port selects an RS-232 option-module serial port; when empty, the first
// character device matching Pattern is used instead.
type LineConfig struct {
	Pattern  string        `mapstructure:"pattern"`
	Port     string        `mapstructure:"port"`
	BaudRate int           `mapstructure:"baud_rate"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig represents the monitor HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Environment variable support
	viper.SetEnvPrefix("SCOPE_SERVICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file; a missing file falls back to defaults
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "scope-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.debug", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.output", "stderr")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Transport defaults: TDS2000-series over its native bulk endpoints
	viper.SetDefault("transport.kind", "bulk")
	viper.SetDefault("transport.usb.vendor_id", "0x0699")
	viper.SetDefault("transport.usb.product_id", "0x0369")
	viper.SetDefault("transport.usb.out_endpoint", 6)
	viper.SetDefault("transport.usb.in_endpoint", 5)
	viper.SetDefault("transport.usb.transfer_size", 1024)
	viper.SetDefault("transport.usb.timeout", "1s")

	viper.SetDefault("transport.line.pattern", "/dev/usbtmc*")
	viper.SetDefault("transport.line.port", "")
	viper.SetDefault("transport.line.baud_rate", 9600)
	viper.SetDefault("transport.line.timeout", "1s")

	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8087")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Transport.Kind != "bulk" && config.Transport.Kind != "line" {
		return fmt.Errorf("transport.kind must be \"bulk\" or \"line\", got %q", config.Transport.Kind)
	}

	if config.Transport.USB.TransferSize <= 0 {
		return fmt.Errorf("transport.usb.transfer_size must be positive")
	}

	if config.Transport.Line.Port == "" && config.Transport.Line.Pattern == "" {
		return fmt.Errorf("transport.line requires a port or a device pattern")
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetServerAddr returns the monitor server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
