package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const controlWriteTimeout = time.Second

// Conn 单条行情连接
type Conn interface {
	// ReadMessage 阻塞读取下一条数据消息；连接关闭时返回 *websocket.CloseError
	ReadMessage() ([]byte, error)
	// Close 发送正常关闭帧并释放连接，可重复调用
	Close() error
}

// Dialer 建立行情连接
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WSDialer 基于 gorilla/websocket 的拨号器
type WSDialer struct {
	Proxy            string        // HTTP代理地址，为空时使用环境变量
	HandshakeTimeout time.Duration // 握手超时
	PingInterval     time.Duration // 心跳间隔，0 表示不发心跳
	PongWait         time.Duration // 读超时，默认 3*PingInterval，仅在发心跳时生效
}

// Dial 建立WebSocket连接
func (d *WSDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	if d.Proxy != "" {
		proxyURL, err := url.Parse(d.Proxy)
		if err != nil {
			return nil, fmt.Errorf("解析代理URL失败: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		conn: conn,
		done: make(chan struct{}),
	}
	if d.PingInterval > 0 {
		c.pongWait = d.PongWait
		if c.pongWait <= 0 {
			c.pongWait = 3 * d.PingInterval
		}
		c.keepAlive()
		go c.pingLoop(d.PingInterval)
	}
	return c, nil
}

// wsConn gorilla连接适配
type wsConn struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	// 对端超过 pongWait 无任何响应时读操作超时
	pongWait time.Duration
}

// keepAlive 设置读超时，收到 pong/ping 或数据时续期
func (c *wsConn) keepAlive() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err == nil && c.pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	return data, err
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(controlWriteTimeout),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// pingLoop 心跳循环，写失败时关闭底层连接，读循环随即返回错误
func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteTimeout)); err != nil {
				zap.L().Warn("发送心跳失败，关闭连接", zap.Error(err))
				_ = c.conn.Close()
				return
			}
		}
	}
}
