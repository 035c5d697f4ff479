package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers for the relational backend
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Source   SourceConfig
	Metrics  MetricsConfig
	Run      RunConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StoreConfig selects the NAV store backend.
// Local selects the CSV file store; otherwise Driver picks the SQL dialect.
type StoreConfig struct {
	Local      bool
	FilePath   string
	Driver     string
	SQLitePath string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// RedisConfig holds the history cache configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// SourceConfig holds the eastmoney client configuration
type SourceConfig struct {
	ListURL           string
	HistoryURL        string
	PageSize          int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// MetricsConfig holds the aggregator parameters
type MetricsConfig struct {
	RiskFreeRate   float64
	DrawdownMethod string
}

// RunConfig holds the batch run parameters
type RunConfig struct {
	TopN      int
	OutputDir string
	ExportDir string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables, after loading a
// .env file when one exists
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fundmetrics"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Store: StoreConfig{
			Local:      getEnvAsBool("FUNDMETRICS_LOCAL", false),
			FilePath:   getEnv("STORE_FILE_PATH", "data/local_db.csv"),
			Driver:     getEnv("STORE_DRIVER", DriverSQLite),
			SQLitePath: getEnv("STORE_SQLITE_PATH", "data/fundnav.db"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "fund-summaries"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 24*time.Hour),
		},
		Source: SourceConfig{
			ListURL:           getEnv("EASTMONEY_LIST_URL", "https://fund.eastmoney.com/fund.html"),
			HistoryURL:        getEnv("EASTMONEY_HISTORY_URL", "http://api.fund.eastmoney.com/f10/lsjz"),
			PageSize:          getEnvAsInt("EASTMONEY_PAGE_SIZE", 1000),
			RequestsPerSecond: getEnvAsFloat("EASTMONEY_RPS", 2),
			Timeout:           getEnvAsDuration("EASTMONEY_TIMEOUT", 30*time.Second),
		},
		Metrics: MetricsConfig{
			RiskFreeRate:   getEnvAsFloat("METRICS_RISK_FREE_RATE", 0),
			DrawdownMethod: getEnv("METRICS_DRAWDOWN_METHOD", "baseline"),
		},
		Run: RunConfig{
			TopN:      getEnvAsInt("FUNDMETRICS_TOP_N", 20),
			OutputDir: getEnv("FUNDMETRICS_OUTPUT_DIR", "data"),
			ExportDir: getEnv("FUNDMETRICS_EXPORT_DIR", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
	}
}

// Validate checks the combinations Load cannot default
func (c *Config) Validate() error {
	if c.Store.Local {
		if c.Store.FilePath == "" {
			return fmt.Errorf("STORE_FILE_PATH is required in local mode")
		}
	} else {
		switch c.Store.Driver {
		case DriverPostgres:
		case DriverSQLite:
			if c.Store.SQLitePath == "" {
				return fmt.Errorf("STORE_SQLITE_PATH is required for the sqlite driver")
			}
		default:
			return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
		}
	}
	if c.Run.TopN <= 0 {
		return fmt.Errorf("FUNDMETRICS_TOP_N must be positive, got %d", c.Run.TopN)
	}
	if c.Source.PageSize <= 0 {
		return fmt.Errorf("EASTMONEY_PAGE_SIZE must be positive, got %d", c.Source.PageSize)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when kafka is enabled")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated value
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
