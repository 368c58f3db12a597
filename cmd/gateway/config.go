package main

import (
	"UpdateAegis/internal/core/domain"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	LogLevel     string   `mapstructure:"log_level"`
	PublicURL    string   `mapstructure:"public_url"`
	PprofAddr    string   `mapstructure:"pprof_addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	// TrustedProxies 为空时不信任任何代理头，限流按连接对端地址计算
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthSettings struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminUsername string        `mapstructure:"admin_username"`
	AdminPassword string        `mapstructure:"admin_password"`
	MaxFailures   int           `mapstructure:"max_failures"`
	Lockout       time.Duration `mapstructure:"lockout"`
}

type GithubConfig struct {
	Token         string        `mapstructure:"token"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	APIBaseURL    string        `mapstructure:"api_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	UploadsDir    string        `mapstructure:"uploads_dir"`
	IconsDir      string        `mapstructure:"icons_dir"`
	BannersDir    string        `mapstructure:"banners_dir"`
	FetchAssets   bool          `mapstructure:"fetch_assets"`
	MaxAssetBytes int64         `mapstructure:"max_asset_bytes"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

type RuleConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type RateLimitConfig struct {
	Backend     string                `mapstructure:"backend"`
	RedisAddr   string                `mapstructure:"redis_addr"`
	RedisDB     int                   `mapstructure:"redis_db"`
	KeyPrefix   string                `mapstructure:"key_prefix"`
	FailClosed  bool                  `mapstructure:"fail_closed"`
	GlobalRate  float64               `mapstructure:"global_rate"`
	GlobalBurst int                   `mapstructure:"global_burst"`
	Rules       map[string]RuleConfig `mapstructure:"rules"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type SyncConfig struct {
	Schedule         string        `mapstructure:"schedule"`
	Concurrency      int           `mapstructure:"concurrency"`
	PerPluginTimeout time.Duration `mapstructure:"per_plugin_timeout"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Github    GithubConfig    `mapstructure:"github"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

// rules 转换为限流中间件使用的规则表
func (c RateLimitConfig) rules() map[string]domain.RateLimitRule {
	out := make(map[string]domain.RateLimitRule, len(c.Rules))
	for class, r := range c.Rules {
		out[class] = domain.RateLimitRule{Limit: r.Limit, Window: r.Window}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "http://localhost:3000")
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("database.path", "instance/updates.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.max_failures", 5)
	v.SetDefault("auth.lockout", "15m")
	v.SetDefault("github.token", "")
	v.SetDefault("github.webhook_secret", "")
	v.SetDefault("github.api_base_url", "")
	v.SetDefault("github.timeout", "30s")
	v.SetDefault("storage.uploads_dir", "instance/uploads")
	v.SetDefault("storage.icons_dir", "instance/icons")
	v.SetDefault("storage.banners_dir", "instance/banners")
	v.SetDefault("storage.fetch_assets", true)
	v.SetDefault("storage.max_asset_bytes", 100<<20)
	v.SetDefault("storage.fetch_timeout", "2m")
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.redis_addr", "localhost:6379")
	v.SetDefault("rate_limit.redis_db", 0)
	v.SetDefault("rate_limit.key_prefix", "updateaegis:rl:")
	v.SetDefault("rate_limit.fail_closed", false)
	v.SetDefault("rate_limit.global_rate", 50)
	v.SetDefault("rate_limit.global_burst", 100)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("sync.schedule", "")
	v.SetDefault("sync.concurrency", 2)
	v.SetDefault("sync.per_plugin_timeout", "2m")
}

// loadConfig 依次加载 .env、配置文件与 AEGIS_ 前缀的环境变量。配置文件缺失时只使用默认值与环境变量。
func loadConfig(rootDir string) (*viper.Viper, *Config, error) {
	if err := godotenv.Load(filepath.Join(rootDir, ".env")); err == nil {
		log.Printf("已加载 .env")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(rootDir, "configs", "config.yaml"))
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Printf("警告: 读取配置文件失败，使用默认值与环境变量: %v", err)
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")
	return &cfg, nil
}
