package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxGallonsPerTransaction = 10
	defaultMaxMonthlyQuota          = 100
	defaultAdminPageSize            = 15
	defaultRecentTransactions       = 10
	defaultShutdownTimeout          = 10 * time.Second
	defaultLogLevel                 = "info"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Quota    QuotaConfig    `yaml:"quota"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig は gRPC / HTTP サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	HTTPAddr           string        `yaml:"http_addr"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
	Isolation          string        `yaml:"isolation"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// QuotaConfig は配布クォータのポリシー設定です。
type QuotaConfig struct {
	MaxGallonsPerTransaction int            `yaml:"max_gallons_per_transaction"`
	MaxMonthlyQuota          int            `yaml:"max_monthly_quota"`
	Timezone                 string         `yaml:"timezone"`
	Location                 *time.Location `yaml:"-"`
}

// AdminConfig は管理画面向け API の設定です。
type AdminConfig struct {
	PageSize           int `yaml:"page_size"`
	RecentTransactions int `yaml:"recent_transactions"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
// カレントディレクトリに .env があれば読み込み、環境変数で一部の値を上書きします。
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	overrideString(&c.Database.Host, "DATABASE_HOST")
	overrideString(&c.Database.User, "DATABASE_USER")
	overrideString(&c.Database.Password, "DATABASE_PASSWORD")
	overrideString(&c.Database.Name, "DATABASE_NAME")
	overrideString(&c.Server.HTTPAddr, "HTTP_ADDR")
	overrideString(&c.Server.ListenAddr, "GRPC_ADDR")
	overrideString(&c.Log.Level, "LOG_LEVEL")

	if raw := os.Getenv("DATABASE_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: DATABASE_PORT: %w", err)
		}
		c.Database.Port = port
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	db := &c.Database
	if err := db.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Quota.validateAndNormalize(); err != nil {
		return err
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	if c.Admin.PageSize <= 0 {
		c.Admin.PageSize = defaultAdminPageSize
	}
	if c.Admin.RecentTransactions <= 0 {
		c.Admin.RecentTransactions = defaultRecentTransactions
	}

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr must be set")
	}

	timeout, err := parseDurationAllowEmpty(s.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	s.ShutdownTimeout = timeout
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	d.Isolation = strings.ToLower(strings.TrimSpace(d.Isolation))
	switch d.Isolation {
	case "", "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("config: database.isolation: unsupported value %q", d.Isolation)
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (q *QuotaConfig) validateAndNormalize() error {
	if q.MaxGallonsPerTransaction == 0 {
		q.MaxGallonsPerTransaction = defaultMaxGallonsPerTransaction
	}
	if q.MaxGallonsPerTransaction < 1 {
		return fmt.Errorf("config: quota.max_gallons_per_transaction must be positive")
	}

	if q.MaxMonthlyQuota == 0 {
		q.MaxMonthlyQuota = defaultMaxMonthlyQuota
	}
	if q.MaxMonthlyQuota < 1 {
		return fmt.Errorf("config: quota.max_monthly_quota must be positive")
	}

	if q.Timezone == "" {
		q.Location = time.UTC
		return nil
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return fmt.Errorf("config: quota.timezone: %w", err)
	}
	q.Location = loc
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx / golang-migrate 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
