package pricefeed

// State 连接状态
type State int

const (
	StateConnecting   State = iota // 正在连接
	StateOpen                      // 已连接
	StateClosedNormal              // 正常关闭，终态
	StateReconnecting              // 异常关闭，等待重连
	StateGaveUp                    // 异常关闭且重连次数耗尽，终态
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedNormal:
		return "closed_normal"
	case StateReconnecting:
		return "reconnecting"
	case StateGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateClosedNormal || s == StateGaveUp
}
