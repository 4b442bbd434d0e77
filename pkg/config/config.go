package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"price-alert-sentry/pkg/types"
)

// Load 加载配置，查找 ./configs 与当前目录
func Load() (*types.Config, error) {
	return LoadFrom("./configs", ".")
}

// LoadFrom 从指定目录加载配置
// 优先级：环境变量 > config.local.yaml > config.yaml > 默认值
func LoadFrom(paths ...string) (*types.Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 优先尝试读取本地配置文件
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取本地配置失败: %w", err)
		}
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置失败: %w", err)
			}
		}
	}

	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 检查配置是否可用
func Validate(cfg *types.Config) error {
	if len(cfg.Feed.Assets) == 0 {
		return errors.New("feed.assets 不能为空")
	}
	if cfg.Alert.Threshold <= 0 {
		return fmt.Errorf("alert.threshold 必须大于0，当前: %v", cfg.Alert.Threshold)
	}
	if cfg.Feed.MaxReconnectAttempts < 0 {
		return fmt.Errorf("feed.max_reconnect_attempts 不能为负数，当前: %d", cfg.Feed.MaxReconnectAttempts)
	}
	if cfg.Feed.ReconnectInterval <= 0 {
		return fmt.Errorf("feed.reconnect_interval 必须大于0，当前: %v", cfg.Feed.ReconnectInterval)
	}
	if !cfg.Feed.Simulate && cfg.Feed.Endpoint == "" {
		return errors.New("feed.endpoint 不能为空")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "price-alerts")
	v.SetDefault("dingtalk.webhook_url", "")
	v.SetDefault("dingtalk.secret", "")
	v.SetDefault("pushplus.user_token", "")
	v.SetDefault("pushplus.to", "")
	v.SetDefault("alert.threshold", 0.5)
	v.SetDefault("alert.queue_size", 100)
	v.SetDefault("alert.report_interval", 5*time.Minute)
	v.SetDefault("feed.endpoint", "wss://ws.coincap.io/prices")
	v.SetDefault("feed.assets", []string{"bitcoin", "ethereum", "cardano"})
	v.SetDefault("feed.reconnect_interval", 5*time.Second)
	v.SetDefault("feed.max_reconnect_attempts", 5)
	v.SetDefault("feed.ping_interval", 20*time.Second)
	v.SetDefault("feed.pong_wait", time.Duration(0))
	v.SetDefault("feed.simulate", false)
	v.SetDefault("feed.simulate_interval", 3*time.Second)
	v.SetDefault("notification.history_limit", 10)
	v.SetDefault("network.proxy", "")
	v.SetDefault("network.timeout", 10*time.Second)
}
