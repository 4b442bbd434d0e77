package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"price-alert-sentry/internal/dispatcher"
	"price-alert-sentry/internal/monitor"
	"price-alert-sentry/internal/notifier"
	"price-alert-sentry/internal/pricefeed"
	"price-alert-sentry/internal/storage"
	"price-alert-sentry/pkg/types"
)

// errFeedStopped 行情订阅放弃重连，应用随之退出
var errFeedStopped = errors.New("行情订阅已停止，不再重连")

// App 应用程序管理器
type App struct {
	config   *types.Config
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	groupCtx context.Context

	history *storage.NotificationStore
	monitor *monitor.AlertMonitor
	feed    *pricefeed.Connection
	redis   *notifier.RedisNotifier
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		history: storage.NewNotificationStore(config.Notification.HistoryLimit),
		monitor: monitor.NewAlertMonitor(config.Alert.ReportInterval),
	}
}

// Start 启动分发器和行情订阅
func (app *App) Start() error {
	zap.L().Info("🚀 Price Alert Sentry 启动中...")

	alertDispatcher := dispatcher.NewDispatcher(app.history, app.config.Alert.QueueSize, app.buildNotifiers()...)

	g, ctx := errgroup.WithContext(app.ctx)
	app.group = g
	app.groupCtx = ctx
	g.Go(func() error {
		alertDispatcher.Start(ctx)
		return nil
	})
	g.Go(func() error {
		app.monitor.Start(ctx)
		return nil
	})

	onAlert := func(alert *types.AlertEvent) {
		app.monitor.RecordAlert(alert)
		alertDispatcher.OnAlert(alert)
	}
	onError := func(err error) {
		app.monitor.RecordError(err)
		alertDispatcher.OnError(err)
	}

	feed, err := pricefeed.Start(ctx, app.feedOptions(), app.config.Feed.Assets, onAlert, onError)
	if err != nil {
		app.cancel()
		_ = g.Wait()
		return err
	}
	app.feed = feed

	// 放弃重连时返回错误，取消整个 group
	g.Go(func() error {
		<-feed.Done()
		state := feed.State()
		zap.L().Info("行情订阅协程已退出", zap.Stringer("state", state))
		if state == pricefeed.StateGaveUp {
			return errFeedStopped
		}
		return nil
	})

	zap.L().Info("✅ Price Alert Sentry 已启动", zap.String("url", feed.URL()))
	return nil
}

// Stop 停止应用程序，返回导致退出的运行错误
func (app *App) Stop() error {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	if app.feed != nil {
		app.feed.Disconnect()
	}
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	var runErr error
	done := make(chan struct{})
	go func() {
		if app.group != nil {
			runErr = app.group.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		app.monitor.PrintFormattedReport(os.Stdout)
		zap.L().Info("✅ Price Alert Sentry 已安全关闭", zap.Int("notifications", app.history.Len()))
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if app.redis != nil {
		_ = app.redis.Close()
	}
	return runErr
}

// WaitForShutdown 等待关闭信号，或任一后台协程出错
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var groupDone <-chan struct{}
	if app.groupCtx != nil {
		groupDone = app.groupCtx.Done()
	}

	select {
	case sig := <-sigCh:
		zap.L().Info("收到系统信号", zap.String("signal", sig.String()))
	case <-groupDone:
		zap.L().Warn("⚠️ 后台任务已退出", zap.Error(context.Cause(app.groupCtx)))
	}
}

func (app *App) feedOptions() pricefeed.Options {
	feedCfg := app.config.Feed

	var dialer pricefeed.Dialer = &pricefeed.WSDialer{
		Proxy:            app.config.Network.Proxy,
		HandshakeTimeout: app.config.Network.Timeout,
		PingInterval:     feedCfg.PingInterval,
		PongWait:         feedCfg.PongWait,
	}
	if feedCfg.Simulate {
		zap.L().Info("🔧 使用模拟行情", zap.Duration("interval", feedCfg.SimulateInterval))
		dialer = &pricefeed.SimulatedDialer{Interval: feedCfg.SimulateInterval}
	}

	return pricefeed.Options{
		Endpoint:             feedCfg.Endpoint,
		Threshold:            app.config.Alert.Threshold,
		MaxReconnectAttempts: feedCfg.MaxReconnectAttempts,
		ReconnectInterval:    feedCfg.ReconnectInterval,
		Dialer:               dialer,
	}
}

// buildNotifiers 根据配置选择通知服务（优先级：钉钉 > PushPlus > 控制台），Redis 额外发布
func (app *App) buildNotifiers() []notifier.Interface {
	cfg := app.config
	var notifiers []notifier.Interface

	switch {
	case cfg.DingTalk.WebhookURL != "":
		zap.L().Info("✅ 已配置钉钉通知服务")
		notifiers = append(notifiers, notifier.NewDingTalkNotifier(cfg.DingTalk.WebhookURL, cfg.DingTalk.Secret, cfg.Network.Timeout))
	case cfg.PushPlus.UserToken != "":
		zap.L().Info("✅ 已配置PushPlus通知服务", zap.Bool("has_friend", cfg.PushPlus.To != ""))
		notifiers = append(notifiers, notifier.NewPushPlusNotifier(cfg.PushPlus.UserToken, cfg.PushPlus.To, cfg.Network.Timeout))
	default:
		zap.L().Info("🔧 未配置远程通知，使用控制台输出模式")
		notifiers = append(notifiers, notifier.NewConsoleNotifier())
	}

	if cfg.Redis.URL != "" {
		rn, err := notifier.NewRedisNotifier(cfg.Redis)
		if err != nil {
			zap.L().Warn("⚠️ Redis不可用，跳过预警发布", zap.Error(err))
		} else {
			app.redis = rn
			notifiers = append(notifiers, rn)
		}
	}

	return notifiers
}
