// Package pricefeed 维护单条行情推送订阅，检测价格波动并在异常断开后按线性退避重连
package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"price-alert-sentry/internal/analyzer"
	"price-alert-sentry/pkg/types"
)

// AlertFunc 预警回调，不应长时间阻塞
type AlertFunc func(*types.AlertEvent)

// ErrorFunc 错误回调，不应长时间阻塞
type ErrorFunc func(error)

// Options 连接参数
type Options struct {
	Endpoint             string
	Threshold            float64       // 百分比
	MaxReconnectAttempts int           // 连续重连上限
	ReconnectInterval    time.Duration // 第n次重连等待 n*ReconnectInterval
	Dialer               Dialer

	after func(time.Duration) <-chan time.Time // 替换退避计时，测试用
}

// Connection 行情连接句柄
type Connection struct {
	opts     Options
	url      string
	detector *analyzer.Detector
	onAlert  AlertFunc
	onError  ErrorFunc
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	conn  Conn
	state State

	// 只在 run 协程中访问
	attempts int
}

// Start 建立订阅并在后台开始接收
func Start(ctx context.Context, opts Options, assetIDs []string, onAlert AlertFunc, onError ErrorFunc) (*Connection, error) {
	ids := normalizeAssets(assetIDs)
	if len(ids) == 0 {
		return nil, ErrNoAssets
	}
	if opts.Dialer == nil {
		opts.Dialer = &WSDialer{}
	}
	if onAlert == nil {
		onAlert = func(*types.AlertEvent) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	rawURL, err := BuildURL(opts.Endpoint, ids)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		opts:     opts,
		url:      rawURL,
		detector: analyzer.NewDetector(opts.Threshold),
		onAlert:  onAlert,
		onError:  onError,
		logger:   zap.L().Named("pricefeed"),
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	// 上层 ctx 取消时同样关闭当前连接
	context.AfterFunc(c.ctx, c.closeActive)

	c.logger.Info("🚀 启动行情订阅",
		zap.Strings("assets", ids),
		zap.Float64("threshold", opts.Threshold),
		zap.Int("max_reconnect_attempts", opts.MaxReconnectAttempts))

	go c.run()
	return c, nil
}

// Disconnect 主动断开，可重复调用，不会触发重连
func (c *Connection) Disconnect() {
	c.cancel()
	c.closeActive()
}

// Done 后台协程退出后关闭
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// State 当前连接状态
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL 实际订阅地址
func (c *Connection) URL() string {
	return c.url
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// run 连接状态机：连接 → 接收 → 关闭 → 退避重连
func (c *Connection) run() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("行情协程panic", zap.Any("error", r))
			c.setState(StateGaveUp)
		}
	}()

	for {
		c.setState(StateConnecting)
		code := c.connectAndReceive()

		if c.ctx.Err() != nil {
			c.setState(StateClosedNormal)
			c.logger.Info("📴 行情订阅已主动断开")
			return
		}

		if code == websocket.CloseNormalClosure {
			c.setState(StateClosedNormal)
			c.logger.Info("📴 行情连接正常关闭，不再重连")
			return
		}

		if c.attempts >= c.opts.MaxReconnectAttempts {
			c.setState(StateGaveUp)
			c.logger.Error("❌ 达到最大重连次数，停止重连",
				zap.Int("max_attempts", c.opts.MaxReconnectAttempts))
			c.onError(fmt.Errorf("%w (共尝试%d次)", ErrReconnectExhausted, c.attempts))
			return
		}

		c.attempts++
		delay := c.opts.ReconnectInterval * time.Duration(c.attempts)
		c.setState(StateReconnecting)
		c.logger.Warn("🔄 行情连接异常关闭，准备重连",
			zap.Int("close_code", code),
			zap.Int("attempt", c.attempts),
			zap.Int("max_attempts", c.opts.MaxReconnectAttempts),
			zap.Duration("delay", delay))

		if !c.wait(delay) {
			c.setState(StateClosedNormal)
			c.logger.Info("📴 重连等待期间被主动断开")
			return
		}
	}
}

// wait 退避等待，返回 false 表示连接已不再需要
func (c *Connection) wait(delay time.Duration) bool {
	var fired <-chan time.Time
	if c.opts.after != nil {
		fired = c.opts.after(delay)
	} else {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		fired = timer.C
	}

	select {
	case <-c.ctx.Done():
		return false
	case <-fired:
	}
	// 计时器与断开同时就绪时以断开为准
	return c.ctx.Err() == nil
}

// connectAndReceive 建立一次连接并读到关闭为止，返回关闭码
func (c *Connection) connectAndReceive() int {
	conn, err := c.opts.Dialer.Dial(c.ctx, c.url)
	if err != nil {
		if c.ctx.Err() == nil {
			c.reportTransport("建立", err)
		}
		return websocket.CloseAbnormalClosure
	}
	if !c.attach(conn) {
		return websocket.CloseNormalClosure
	}
	defer c.detach(conn)

	c.attempts = 0
	c.detector.Reset()
	c.setState(StateOpen)
	c.logger.Info("✅ 行情连接建立成功", zap.String("url", c.url))

	for {
		message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return websocket.CloseNormalClosure
			}
			code, isClose := closeCode(err)
			if !isClose || code == websocket.CloseAbnormalClosure {
				c.reportTransport("读取", err)
			}
			return code
		}
		c.handleMessage(message)
	}
}

// handleMessage 解析失败只记日志，不影响连接
func (c *Connection) handleMessage(message []byte) {
	update, err := parseUpdate(message)
	if err != nil {
		c.logger.Warn("解析行情数据失败", zap.Error(err), zap.ByteString("message", message))
		return
	}
	for _, alert := range c.detector.Observe(update) {
		c.logger.Info("🚨 价格预警触发",
			zap.String("asset", alert.AssetID),
			zap.String("price", alert.Price.StringFixed(2)),
			zap.String("change", alert.PercentChange.StringFixed(2)))
		c.onAlert(alert)
	}
}

func (c *Connection) reportTransport(op string, err error) {
	c.logger.Error("行情连接错误", zap.String("op", op), zap.Error(err))
	c.onError(&TransportError{Op: op, Err: err})
}

// attach 登记新连接；已被主动断开时直接关闭新连接
func (c *Connection) attach(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	c.conn = conn
	return true
}

func (c *Connection) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// closeActive 以正常关闭码关闭当前连接
func (c *Connection) closeActive() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
