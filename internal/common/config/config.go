// Package config 提供应用配置管理功能
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Crypto      CryptoConfig      `mapstructure:"crypto"`
	SMS         SMSConfig         `mapstructure:"sms"`
	Email       EmailConfig       `mapstructure:"email"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	PlateLookup PlateLookupConfig `mapstructure:"platelookup"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Business    BusinessConfig    `mapstructure:"business"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Name            string `mapstructure:"name"`
	Mode            string `mapstructure:"mode"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
	SlowThreshold   int    `mapstructure:"slow_threshold"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 Redis 地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	AccessTokenExpire  int    `mapstructure:"access_token_expire"`
	RefreshTokenExpire int    `mapstructure:"refresh_token_expire"`
	Issuer             string `mapstructure:"issuer"`
}

// AccessTokenDuration 返回访问令牌有效期
func (j *JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(j.AccessTokenExpire) * time.Hour
}

// RefreshTokenDuration 返回刷新令牌有效期
func (j *JWTConfig) RefreshTokenDuration() time.Duration {
	return time.Duration(j.RefreshTokenExpire) * time.Hour
}

// CryptoConfig 加密配置
type CryptoConfig struct {
	AESKey     string `mapstructure:"aes_key"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

// SMSConfig 短信配置
type SMSConfig struct {
	Provider     string `mapstructure:"provider"`
	AccountSID   string `mapstructure:"account_sid"`
	AuthToken    string `mapstructure:"auth_token"`
	FromNumber   string `mapstructure:"from_number"`
	SendInterval int    `mapstructure:"send_interval"`
	DailyLimit   int    `mapstructure:"daily_limit"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Provider string `mapstructure:"provider"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// StripeConfig Stripe 支付配置
type StripeConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
	MockMode      bool   `mapstructure:"mock_mode"`
	Timeout       int    `mapstructure:"timeout"`
}

// PlateLookupConfig 车牌查询配置
type PlateLookupConfig struct {
	DVLAEndpoint string `mapstructure:"dvla_endpoint"`
	DVLAAPIKey   string `mapstructure:"dvla_api_key"`
	Timeout      int    `mapstructure:"timeout"`
	MockFallback bool   `mapstructure:"mock_fallback"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	Burst             int  `mapstructure:"burst"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// BusinessConfig 业务配置
type BusinessConfig struct {
	Markets     map[string]MarketConfig `mapstructure:"markets"`
	Reservation ReservationConfig       `mapstructure:"reservation"`
	Wallet      WalletConfig            `mapstructure:"wallet"`
	Payout      PayoutConfig            `mapstructure:"payout"`
	Chat        ChatConfig              `mapstructure:"chat"`
}

// MarketConfig 市场费用配置（按国家/地区划分）
type MarketConfig struct {
	Currency         string  `mapstructure:"currency"`
	BaseFee          float64 `mapstructure:"base_fee"`
	LaborFeeRate     float64 `mapstructure:"labor_fee_rate"`
	FeeBasis         string  `mapstructure:"fee_basis"` // labor: 按工时费抽成；amount: 按订单总额抽成
	PrebookingAmount float64 `mapstructure:"prebooking_amount"`
}

// ReservationConfig 配件预约配置
type ReservationConfig struct {
	ExpireHours       int `mapstructure:"expire_hours"`
	CodeRetryAttempts int `mapstructure:"code_retry_attempts"`
	SweepInterval     int `mapstructure:"sweep_interval"`
}

// WalletConfig 钱包配置
type WalletConfig struct {
	SettleDelayDays int `mapstructure:"settle_delay_days"`
	SettleInterval  int `mapstructure:"settle_interval"`
}

// PayoutConfig 提现配置
type PayoutConfig struct {
	MinAmount float64 `mapstructure:"min_amount"`
}

// ChatConfig 聊天配置
type ChatConfig struct {
	HistoryLimit    int `mapstructure:"history_limit"`
	PresenceTTL     int `mapstructure:"presence_ttl"`
	WriteBufferSize int `mapstructure:"write_buffer_size"`
	ReadBufferSize  int `mapstructure:"read_buffer_size"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./configs")
			v.AddConfigPath(".")
		}

		// 环境变量支持
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认值
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		// 解析配置
		globalConfig = &Config{}
		if err = v.Unmarshal(globalConfig); err != nil {
			return
		}
	})

	return globalConfig, err
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		// 使用默认配置
		globalConfig = &Config{}
		v := viper.New()
		setDefaults(v)
		_ = v.Unmarshal(globalConfig)
	}
	return globalConfig
}

// Market 返回指定市场的费用配置，未知市场回退到 uk
func (c *Config) Market(code string) MarketConfig {
	if m, ok := c.Business.Markets[strings.ToLower(code)]; ok {
		return m
	}
	return c.Business.Markets["uk"]
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.name", "quickmech-backend")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 10)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "quickmech")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_mode", true)
	v.SetDefault("database.slow_threshold", 200)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	// JWT defaults
	v.SetDefault("jwt.secret", "your-super-secret-key-change-in-production")
	v.SetDefault("jwt.access_token_expire", 168)
	v.SetDefault("jwt.refresh_token_expire", 720)
	v.SetDefault("jwt.issuer", "quickmech")

	// Crypto defaults
	v.SetDefault("crypto.bcrypt_cost", 10)

	// SMS defaults
	v.SetDefault("sms.provider", "mock")
	v.SetDefault("sms.send_interval", 60)
	v.SetDefault("sms.daily_limit", 10)

	// Email defaults
	v.SetDefault("email.provider", "mock")
	v.SetDefault("email.host", "localhost")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.from", "no-reply@quickmech.app")

	// Stripe defaults
	v.SetDefault("stripe.base_url", "https://api.stripe.com")
	v.SetDefault("stripe.mock_mode", true)
	v.SetDefault("stripe.timeout", 10)
	v.SetDefault("stripe.success_url", "https://quickmech.app/payment/success")
	v.SetDefault("stripe.cancel_url", "https://quickmech.app/payment/cancel")

	// PlateLookup defaults
	v.SetDefault("platelookup.dvla_endpoint", "https://driver-vehicle-licensing.api.gov.uk/vehicle-enquiry/v1/vehicles")
	v.SetDefault("platelookup.timeout", 5)
	v.SetDefault("platelookup.mock_fallback", true)

	// Logger defaults
	v.SetDefault("logger.level", "debug")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "./logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.caller", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9100)
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "quickmech-backend")
	v.SetDefault("tracing.sample_rate", 1.0)

	// Rate limit defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 100)
	v.SetDefault("ratelimit.burst", 200)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	// Business defaults
	v.SetDefault("business.markets.uk.currency", "GBP")
	v.SetDefault("business.markets.uk.base_fee", 5.00)
	v.SetDefault("business.markets.uk.labor_fee_rate", 0.10)
	v.SetDefault("business.markets.uk.fee_basis", "labor")
	v.SetDefault("business.markets.uk.prebooking_amount", 12.00)
	v.SetDefault("business.markets.br.currency", "BRL")
	v.SetDefault("business.markets.br.base_fee", 20.00)
	v.SetDefault("business.markets.br.labor_fee_rate", 0.10)
	v.SetDefault("business.markets.br.fee_basis", "amount")
	v.SetDefault("business.markets.br.prebooking_amount", 50.00)
	v.SetDefault("business.reservation.expire_hours", 24)
	v.SetDefault("business.reservation.code_retry_attempts", 5)
	v.SetDefault("business.reservation.sweep_interval", 10)
	v.SetDefault("business.wallet.settle_delay_days", 7)
	v.SetDefault("business.wallet.settle_interval", 60)
	v.SetDefault("business.payout.min_amount", 10.00)
	v.SetDefault("business.chat.history_limit", 100)
	v.SetDefault("business.chat.presence_ttl", 60)
	v.SetDefault("business.chat.write_buffer_size", 1024)
	v.SetDefault("business.chat.read_buffer_size", 1024)
}

// IsDebug 是否为调试模式
func (c *Config) IsDebug() bool {
	return c.Server.Mode == "debug"
}

// IsRelease 是否为发布模式
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}
