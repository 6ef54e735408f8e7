package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 自动来源的读取后端
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// ErrInvalidConfig 表示配置项取值不合法
var ErrInvalidConfig = errors.New("invalid configuration")

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	GinMode           string
	LogLevel          string
	LogFormat         string
	Timezone          string
	AutoSourceBackend string
	SupabaseURL       string
	SupabaseKey       string
	StatsWindowDays   int
}

// Load 依次读取 .env、可选的 YAML 配置文件与环境变量，并为缺失项提供默认值。
// configFile 为空时只使用环境变量。
func Load(configFile string) (AppConfig, error) {
	// .env 缺失时直接使用进程环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "tracklog.db")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("timezone", "Local")
	v.SetDefault("auto_source_backend", BackendSQLite)
	v.SetDefault("stats_window_days", 90)

	for _, key := range []string{
		"port", "listen_addr", "database_path", "gin_mode", "log_level", "log_format",
		"timezone", "auto_source_backend", "supabase_url", "supabase_key", "stats_window_days",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return AppConfig{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path := strings.TrimSpace(configFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	port := strings.TrimSpace(v.GetString("port"))
	listenAddr := strings.TrimSpace(v.GetString("listen_addr"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	cfg := AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      strings.TrimSpace(v.GetString("database_path")),
		GinMode:           strings.TrimSpace(v.GetString("gin_mode")),
		LogLevel:          strings.TrimSpace(v.GetString("log_level")),
		LogFormat:         strings.TrimSpace(v.GetString("log_format")),
		Timezone:          strings.TrimSpace(v.GetString("timezone")),
		AutoSourceBackend: strings.ToLower(strings.TrimSpace(v.GetString("auto_source_backend"))),
		SupabaseURL:       strings.TrimSpace(v.GetString("supabase_url")),
		SupabaseKey:       strings.TrimSpace(v.GetString("supabase_key")),
		StatsWindowDays:   v.GetInt("stats_window_days"),
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate 检查配置组合是否可用
func (c AppConfig) Validate() error {
	switch c.AutoSourceBackend {
	case BackendSQLite:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_KEY are required for the supabase backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported auto source backend %q", ErrInvalidConfig, c.AutoSourceBackend)
	}

	if c.StatsWindowDays < 30 {
		return fmt.Errorf("%w: STATS_WINDOW_DAYS must be at least 30", ErrInvalidConfig)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Location 返回用于计算“今天”的时区
func (c AppConfig) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
