package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	Security  SecurityConfig  `json:"security"`
	Chain     ChainConfig     `json:"chain"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL            string        `json:"url"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// RedisConfig is optional; when disabled or unreachable the in-memory cache is used.
type RedisConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// CacheConfig holds the TTLs of the per-user read caches.
type CacheConfig struct {
	CreditsTTL      time.Duration `json:"credits_ttl"`
	TransactionsTTL time.Duration `json:"transactions_ttl"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// ChainConfig configures the bridge to the carbon credit contract.
type ChainConfig struct {
	RPCURL          string `json:"rpc_url"`
	ContractAddress string `json:"contract_address"`
	PrivateKey      string `json:"private_key"`
	ABIPath         string `json:"abi_path"`
	GasLimit        uint64 `json:"gas_limit"`
	GasPriceGwei    int64  `json:"gas_price_gwei"`
}

// Enabled reports whether enough is configured to talk to the contract.
func (c *ChainConfig) Enabled() bool {
	return c.RPCURL != "" && c.ContractAddress != "" && c.ABIPath != ""
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// SchedulerConfig
type SchedulerConfig struct {
	PoolRefreshSpec string `json:"pool_refresh_spec"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			DBName:         "local_database",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    240 * time.Second,
			AutoMigrate:    true,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
		Cache: CacheConfig{
			CreditsTTL:      30 * time.Second,
			TransactionsTTL: time.Second,
		},
		Security: SecurityConfig{
			JWTSecret: "your-secret-key",
			TokenTTL:  time.Hour,
		},
		Chain: ChainConfig{
			RPCURL:       "http://127.0.0.1:8545",
			ABIPath:      "CarbonCreditABI.json",
			GasLimit:     3000000,
			GasPriceGwei: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			PoolRefreshSpec: "@every 1m",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
		config.Redis.Enabled = true
	}

	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.Security.JWTSecret = secret
	}

	if rpc := os.Getenv("RPC_URL"); rpc != "" {
		config.Chain.RPCURL = rpc
	}
	if addr := os.Getenv("CONTRACT_ADDRESS"); addr != "" {
		config.Chain.ContractAddress = addr
	}
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		config.Chain.PrivateKey = key
	}
	if path := os.Getenv("CONTRACT_ABI_PATH"); path != "" {
		config.Chain.ABIPath = path
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
