package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"price-alert-sentry/pkg/types"
)

const publishTimeout = 3 * time.Second

// publisher go-redis 客户端中用到的部分
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier 将预警以JSON发布到Redis频道，不保存任何数据
type RedisNotifier struct {
	client  publisher
	channel string
}

// NewRedisNotifier 连接Redis并检查可用性
func NewRedisNotifier(cfg types.RedisConfig) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	zap.L().Info("✅ Redis连接成功", zap.String("addr", cfg.URL), zap.String("channel", cfg.Channel))
	return &RedisNotifier{client: client, channel: cfg.Channel}, nil
}

func (rn *RedisNotifier) SendAlert(alert *types.AlertEvent) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化预警失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	receivers, err := rn.client.Publish(ctx, rn.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("发布预警到Redis失败: %w", err)
	}

	zap.L().Debug("预警已发布到Redis",
		zap.String("channel", rn.channel),
		zap.String("asset", alert.AssetID),
		zap.Int64("receivers", receivers))
	return nil
}

// SendBatchAlerts 逐条发布，订阅方按单条消息处理
func (rn *RedisNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	for _, alert := range alerts {
		if err := rn.SendAlert(alert); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭Redis连接
func (rn *RedisNotifier) Close() error {
	if c, ok := rn.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
