// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 当前配置的单例实例
var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// Config 存储应用配置
type Config struct {
	Port       string `envconfig:"PORT" default:"8000"`
	ScriptsDir string `envconfig:"SCRIPTS_DIR" default:"scripts"` // 每个子目录是一个故事
	LogDir     string `envconfig:"LOG_DIR" default:"logs"`
	DebugMode  bool   `envconfig:"DEBUG_MODE" default:"true"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`

	// 为空时允许所有来源
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	AutoAdvanceInterval time.Duration `envconfig:"AUTO_ADVANCE_INTERVAL" default:"3s"`
	DocumentCacheTTL    time.Duration `envconfig:"DOCUMENT_CACHE_TTL" default:"5m"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"100"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ScriptsDir = filepath.Clean(cfg.ScriptsDir)
	return &cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("端口不能为空")
	}
	if strings.TrimSpace(c.ScriptsDir) == "" {
		return fmt.Errorf("SCRIPTS_DIR 不能为空")
	}
	if c.AutoAdvanceInterval <= 0 {
		return fmt.Errorf("AUTO_ADVANCE_INTERVAL 必须大于0: %s", c.AutoAdvanceInterval)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("限流配置必须大于0")
	}
	return nil
}

// LogFile 返回当天的日志文件路径
func (c *Config) LogFile(prefix string) string {
	return filepath.Join(c.LogDir, fmt.Sprintf("%s_%s.log", prefix, time.Now().Format("2006-01-02")))
}

// InitConfig 加载配置并设置为当前配置
func InitConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	SetCurrentConfig(cfg)
	return cfg, nil
}

// SetCurrentConfig 替换当前配置（测试和命令行工具使用）
func SetCurrentConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = cfg
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *Config {
	configMutex.RLock()
	cfg := currentConfig
	configMutex.RUnlock()

	if cfg == nil {
		// 紧急情况，返回一个基本配置
		loaded, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "警告: 加载默认配置失败: %v\n", err)
			return &Config{
				Port:                "8000",
				ScriptsDir:          "scripts",
				LogDir:              "logs",
				LogLevel:            "info",
				LogEncoding:         "console",
				DebugMode:           true,
				AutoAdvanceInterval: 3 * time.Second,
				DocumentCacheTTL:    5 * time.Minute,
				RateLimitRPS:        50,
				RateLimitBurst:      100,
			}
		}
		return loaded
	}

	configCopy := *cfg
	return &configCopy
}
