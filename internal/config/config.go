package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv  string
	Port     string
	LogFile  string
	AppID    string
	Database DatabaseConfig
	Odoo     OdooConfig
}

// DatabaseConfig holds database configuration.
// Driver "sqlite" is the on-device store; "postgres" is used by back-office mirrors.
type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       string
	Username   string
	Password   string
	Database   string
	LogLevel   string
}

// Odoo push transports
const (
	TransportJSONRPC = "jsonrpc"
	TransportXMLRPC  = "xmlrpc"
)

// OdooConfig holds the ERP sink settings
type OdooConfig struct {
	URL       string
	Database  string
	Username  string
	Password  string
	SyncURL   string // JSON-RPC controller receiving parc-prep pushes
	Transport string // jsonrpc, xmlrpc
	Model     string // XML-RPC model receiving pushes
	Method    string // XML-RPC method receiving pushes
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		NodeEnv: getEnv("NODE_ENV", "development"),
		Port:    getEnv("PORT", "3210"),
		LogFile: os.Getenv("LOG_FILE"),
		AppID:   getEnv("APP_ID", "parc-prep-mobile"),
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			SQLitePath: getEnv("SQLITE_PATH", "./parcprep.db"),
			Host:       getEnv("PG_HOST", "localhost"),
			Port:       getEnv("PG_PORT", "5432"),
			Username:   getEnv("PG_USERNAME", "postgres"),
			Password:   os.Getenv("PG_PASSWORD"),
			Database:   getEnv("PG_DATABASE", "parcprep"),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		Odoo: OdooConfig{
			URL:       strings.TrimRight(os.Getenv("ODOO_URL"), "/"),
			Database:  os.Getenv("ODOO_DB"),
			Username:  os.Getenv("ODOO_USERNAME"),
			Password:  os.Getenv("ODOO_PASSWORD"),
			SyncURL:   os.Getenv("ODOO_SYNC_URL"),
			Transport: strings.ToLower(getEnv("ODOO_SYNC_TRANSPORT", TransportJSONRPC)),
			Model:     getEnv("ODOO_SYNC_MODEL", "parc.prep"),
			Method:    getEnv("ODOO_SYNC_METHOD", "sync_from_app"),
		},
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (sqlite, postgres)", cfg.Database.Driver)
	}

	switch cfg.Odoo.Transport {
	case TransportJSONRPC, TransportXMLRPC:
	default:
		return nil, fmt.Errorf("unsupported ODOO_SYNC_TRANSPORT %q (jsonrpc, xmlrpc)", cfg.Odoo.Transport)
	}

	return cfg, nil
}

// SyncEnabled reports whether enough Odoo settings exist to push anything
func (o OdooConfig) SyncEnabled() bool {
	if o.Transport == TransportXMLRPC {
		return o.URL != "" && o.Database != ""
	}
	return o.SyncURL != ""
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
