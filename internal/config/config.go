package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// DualWriteConfig gates the mirrored write to the external general ledger.
type DualWriteConfig struct {
	Enabled     bool
	RoutingKeys []string
}

type GeneralLedgerConfig struct {
	BaseURL   string
	Timeout   time.Duration
	DualWrite DualWriteConfig
}

type Config struct {
	Port            string
	JWTSecret       string
	BalanceCacheTTL time.Duration
	PublishChannel  string
	Database        DBConfig
	Redis           RedisConfig
	Log             LogConfig
	GeneralLedger   GeneralLedgerConfig
}

// BindEnv maps environment variables onto config keys.
func BindEnv() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")

	viper.BindEnv("general_ledger.base_url", "GENERAL_LEDGER_API_URL")
	viper.BindEnv("general_ledger.timeout", "GENERAL_LEDGER_API_TIMEOUT")
	viper.BindEnv("general_ledger.dual_write.enabled", "GENERAL_LEDGER_DUAL_WRITE_ENABLED")
	viper.BindEnv("general_ledger.dual_write.routing_keys", "GENERAL_LEDGER_DUAL_WRITE_ROUTING_KEYS")
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "prisoner_finance")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("ledger.balance_cache_ttl", time.Minute)
	viper.SetDefault("ledger.publish_channel", "ledger:transactions")

	viper.SetDefault("general_ledger.base_url", "http://localhost:8081")
	viper.SetDefault("general_ledger.timeout", 10*time.Second)
	viper.SetDefault("general_ledger.dual_write.enabled", false)
	viper.SetDefault("general_ledger.dual_write.routing_keys", "")
}

// Load returns configuration with defaults applied.
func Load() *Config {
	setDefaults()

	return &Config{
		Port:            viper.GetString("server.port"),
		JWTSecret:       viper.GetString("jwt.secret_key"),
		BalanceCacheTTL: viper.GetDuration("ledger.balance_cache_ttl"),
		PublishChannel:  viper.GetString("ledger.publish_channel"),
		Database: DBConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetString("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			Name:            viper.GetString("database.name"),
			SSLMode:         viper.GetString("database.ssl_mode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		GeneralLedger: GeneralLedgerConfig{
			BaseURL: viper.GetString("general_ledger.base_url"),
			Timeout: viper.GetDuration("general_ledger.timeout"),
			DualWrite: DualWriteConfig{
				Enabled:     viper.GetBool("general_ledger.dual_write.enabled"),
				RoutingKeys: splitList(viper.GetString("general_ledger.dual_write.routing_keys")),
			},
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
