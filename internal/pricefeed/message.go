package pricefeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoAssets 未指定任何资产
	ErrNoAssets = errors.New("至少需要订阅一个资产")
	// ErrReconnectExhausted 达到最大重连次数
	ErrReconnectExhausted = errors.New("达到最大重连次数，停止重连")
)

// TransportError 连接层错误，只上报，不单独触发重连
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("行情连接%s失败: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// parseUpdate 解析推送消息，格式为 {"bitcoin":"6929.82","ethereum":"404.97"}
func parseUpdate(message []byte) (map[string]decimal.Decimal, error) {
	var update map[string]decimal.Decimal
	if err := json.Unmarshal(message, &update); err != nil {
		return nil, fmt.Errorf("解析行情消息失败: %w", err)
	}
	return update, nil
}

// closeCode 从读错误中取出关闭码，非关闭帧的错误视为异常关闭
func closeCode(err error) (int, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return websocket.CloseAbnormalClosure, false
}

// normalizeAssets 去重并去掉空白ID，保持原有顺序
func normalizeAssets(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// BuildURL 在端点上拼接 assets 参数，ID 以逗号分隔
func BuildURL(endpoint string, assetIDs []string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("解析行情地址失败: %w", err)
	}
	query := "assets=" + strings.Join(assetIDs, ",")
	if u.RawQuery != "" {
		u.RawQuery += "&" + query
	} else {
		u.RawQuery = query
	}
	return u.String(), nil
}

// assetsFromURL 从行情地址中取回资产列表
func assetsFromURL(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return normalizeAssets(strings.Split(u.Query().Get("assets"), ","))
}
