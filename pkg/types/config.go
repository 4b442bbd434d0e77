package types

import "time"

// Config 主配置结构
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Redis        RedisConfig        `mapstructure:"redis"`
	DingTalk     DingTalkConfig     `mapstructure:"dingtalk"`
	PushPlus     PushPlusConfig     `mapstructure:"pushplus"`
	Alert        AlertConfig        `mapstructure:"alert"`
	Feed         FeedConfig         `mapstructure:"feed"`
	Notification NotificationConfig `mapstructure:"notification"`
	Network      NetworkConfig      `mapstructure:"network"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出目录，为空时只输出到控制台
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// RedisConfig Redis配置，只用于发布预警，不做持久化
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

// PushPlusConfig PushPlus配置
type PushPlusConfig struct {
	UserToken string `mapstructure:"user_token"`
	To        string `mapstructure:"to"` // 好友令牌，多人用逗号分隔
}

// AlertConfig 预警配置
type AlertConfig struct {
	Threshold      float64       `mapstructure:"threshold"` // 百分比，如 0.5 表示 0.5%
	QueueSize      int           `mapstructure:"queue_size"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// FeedConfig 行情推送配置
type FeedConfig struct {
	Endpoint             string        `mapstructure:"endpoint"`
	Assets               []string      `mapstructure:"assets"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"` // 线性退避基数
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	PongWait             time.Duration `mapstructure:"pong_wait"` // 0 表示 3*PingInterval
	Simulate             bool          `mapstructure:"simulate"`
	SimulateInterval     time.Duration `mapstructure:"simulate_interval"`
}

// NotificationConfig 通知历史配置
type NotificationConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}
