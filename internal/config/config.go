package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Business BusinessConfig `mapstructure:"business"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 数据库配置，driver 支持 mysql / sqlite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
	Seed         bool   `mapstructure:"seed"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentResult string `mapstructure:"payment_result"`
}

// LedgerConfig 账本核心参数
type LedgerConfig struct {
	DefaultCurrency        string `mapstructure:"default_currency"`
	StoreTimeoutMs         int    `mapstructure:"store_timeout_ms"`
	CallbackLockTTLSeconds int    `mapstructure:"callback_lock_ttl_seconds"`
}

// StoreTimeout 单次存储访问的超时时间
func (c LedgerConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// CallbackLockTTL 回调锁的过期时间
func (c LedgerConfig) CallbackLockTTL() time.Duration {
	return time.Duration(c.CallbackLockTTLSeconds) * time.Second
}

// GatewayConfig 支付网关配置（占位，未接入真实网关）
type GatewayConfig struct {
	CheckoutURL string `mapstructure:"checkout_url"`
}

type BusinessConfig struct {
	MaxRetryCount       int `mapstructure:"max_retry_count"`
	PendingAlertMinutes int `mapstructure:"pending_alert_minutes"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "payments.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.topic.payment_result", "payment_result")
	v.SetDefault("ledger.default_currency", "PHP")
	v.SetDefault("ledger.store_timeout_ms", 3000)
	v.SetDefault("ledger.callback_lock_ttl_seconds", 10)
	v.SetDefault("gateway.checkout_url", "https://gateway.payment.com/checkout")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.pending_alert_minutes", 30)
	v.SetDefault("cors.allow_origins", []string{"*"})
}

// Load 读取配置文件，环境变量（FEELEDGER_ 前缀）优先
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Ledger.StoreTimeoutMs <= 0 {
		return fmt.Errorf("ledger.store_timeout_ms 必须大于0")
	}
	if c.Ledger.DefaultCurrency == "" {
		return fmt.Errorf("ledger.default_currency 不能为空")
	}
	return nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	GlobalConfig = cfg
	return cfg
}
