package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported document store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the server and database settings
type Config struct {
	ServerHost string
	ServerPort int

	DatabaseDriver string
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	SQLitePath     string
}

// FileConfig is the layout of the optional YAML configuration file
type FileConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
		Path     string `yaml:"path"`
	} `yaml:"database"`
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		ServerHost:     "",
		ServerPort:     8080,
		DatabaseDriver: DriverPostgres,
		DBHost:         "localhost",
		DBPort:         5432,
		DBUser:         "postgres",
		DBPassword:     "postgres",
		DBName:         "notes",
		DBSSLMode:      "disable",
		SQLitePath:     "notes.db",
	}
}

// Load reads .env, then the YAML file named by CONFIG_FILE if any, then
// environment variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	setString(&c.ServerHost, fc.Server.Host)
	setInt(&c.ServerPort, fc.Server.Port)
	setString(&c.DatabaseDriver, fc.Database.Driver)
	setString(&c.DBHost, fc.Database.Host)
	setInt(&c.DBPort, fc.Database.Port)
	setString(&c.DBUser, fc.Database.User)
	setString(&c.DBPassword, fc.Database.Password)
	setString(&c.DBName, fc.Database.Name)
	setString(&c.DBSSLMode, fc.Database.SSLMode)
	setString(&c.SQLitePath, fc.Database.Path)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ServerHost, os.Getenv("SERVER_HOST"))
	setString(&c.DatabaseDriver, os.Getenv("DB_DRIVER"))
	setString(&c.DBHost, os.Getenv("DB_HOST"))
	setString(&c.DBUser, os.Getenv("DB_USER"))
	setString(&c.DBPassword, os.Getenv("DB_PASSWORD"))
	setString(&c.DBName, os.Getenv("DB_NAME"))
	setString(&c.DBSSLMode, os.Getenv("DB_SSLMODE"))
	setString(&c.SQLitePath, os.Getenv("SQLITE_PATH"))

	for key, dst := range map[string]*int{"SERVER_PORT": &c.ServerPort, "DB_PORT": &c.DBPort} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks the driver and ports
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerPort)
	}
	return nil
}

// GetDatabaseConnectionString returns the PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// GetServerAddr returns the address the HTTP server listens on
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
