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
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Printer PrinterConfig `mapstructure:"printer"`
	App     AppConfig     `mapstructure:"app"`
}

// ServerConfig represents the local HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           string        `mapstructure:"port" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig represents the thermal printer profile. Paper geometry is
// not configurable: the agent targets 80mm stock at 48 columns only.
type PrinterConfig struct {
	DrawerPin int          `mapstructure:"drawer_pin"`
	USB       USBConfig    `mapstructure:"usb"`
	Layout    LayoutConfig `mapstructure:"layout"`
	QR        QRConfig     `mapstructure:"qr"`
}

// USBConfig represents the USB transport settings
type USBConfig struct {
	VendorID  string `mapstructure:"vendor_id"`
	ProductID string `mapstructure:"product_id"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// LayoutConfig represents the receipt frame content
type LayoutConfig struct {
	ShopName    string   `mapstructure:"shop_name"`
	HeaderLines []string `mapstructure:"header_lines"`
	FooterLines []string `mapstructure:"footer_lines"`
}

// QRConfig represents the footer QR invitation
type QRConfig struct {
	Content    string `mapstructure:"content"`
	InviteLine string `mapstructure:"invite_line"`
	ModuleSize int    `mapstructure:"module_size"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.SetEnvPrefix("PRINT_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file; the agent runs fine on defaults alone
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
	// Server defaults; the agent serves a local POS UI only
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8087")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.allowed_origins", []string{})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Printer defaults: single 80mm ESC/POS profile
	viper.SetDefault("printer.drawer_pin", 2)
	viper.SetDefault("printer.usb.chunk_size", 64)
	viper.SetDefault("printer.layout.shop_name", "MY SHOP")
	viper.SetDefault("printer.layout.header_lines", []string{})
	viper.SetDefault("printer.layout.footer_lines", []string{"Thank you, come again!"})
	viper.SetDefault("printer.qr.content", "")
	viper.SetDefault("printer.qr.invite_line", "Scan to join our community")
	// ~35mm on 80mm stock, tuned for reliable scanning
	viper.SetDefault("printer.qr.module_size", 6)

	// App defaults
	viper.SetDefault("app.name", "print-agent")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Printer.Layout.ShopName == "" {
		return fmt.Errorf("printer.layout.shop_name is required")
	}
	if config.Printer.USB.ChunkSize <= 0 {
		return fmt.Errorf("printer.usb.chunk_size must be positive")
	}
	if config.Printer.QR.ModuleSize < 1 || config.Printer.QR.ModuleSize > 8 {
		return fmt.Errorf("printer.qr.module_size must be between 1 and 8")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
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

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
