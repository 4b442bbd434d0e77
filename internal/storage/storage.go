package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"price-alert-sentry/pkg/types"
)

const defaultHistoryLimit = 10

// NotificationStore 内存中的通知历史，新的在前，只保留最近 limit 条
type NotificationStore struct {
	items []types.Notification
	limit int
	mutex sync.RWMutex
}

func NewNotificationStore(limit int) *NotificationStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &NotificationStore{
		items: make([]types.Notification, 0, limit),
		limit: limit,
	}
}

// Add 插入一条通知，缺省的ID和时间自动补齐
func (ns *NotificationStore) Add(n types.Notification) types.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	ns.mutex.Lock()
	defer ns.mutex.Unlock()

	ns.items = append([]types.Notification{n}, ns.items...)
	if len(ns.items) > ns.limit {
		ns.items = ns.items[:ns.limit]
	}
	return n
}

// List 返回通知副本，新的在前
func (ns *NotificationStore) List() []types.Notification {
	ns.mutex.RLock()
	defer ns.mutex.RUnlock()

	out := make([]types.Notification, len(ns.items))
	copy(out, ns.items)
	return out
}

func (ns *NotificationStore) Clear() {
	ns.mutex.Lock()
	defer ns.mutex.Unlock()
	ns.items = ns.items[:0]
}

func (ns *NotificationStore) Len() int {
	ns.mutex.RLock()
	defer ns.mutex.RUnlock()
	return len(ns.items)
}
