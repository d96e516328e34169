// Package chat 订单内客户与技师的即时沟通
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quickmech/quickmech-backend/internal/common/cache"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/metrics"
)

// Conn 抽象一条推送连接，gorilla 的 *websocket.Conn 天然满足
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Registry 在线连接注册表
// 每个用户同时只保留一条连接，新连接挤掉旧连接
type Registry struct {
	mu          sync.RWMutex
	conns       map[int64]Conn
	presenceTTL time.Duration
}

// NewRegistry 创建连接注册表
func NewRegistry(presenceTTL time.Duration) *Registry {
	if presenceTTL <= 0 {
		presenceTTL = 5 * time.Minute
	}
	return &Registry{
		conns:       make(map[int64]Conn),
		presenceTTL: presenceTTL,
	}
}

// Register 注册连接并写入在线标记
func (r *Registry) Register(ctx context.Context, userID int64, conn Conn) {
	r.mu.Lock()
	if old, ok := r.conns[userID]; ok {
		old.Close()
	}
	r.conns[userID] = conn
	r.mu.Unlock()

	metrics.GetMetrics().ChatConnOpened()
	r.setPresence(ctx, userID)
}

// Unregister 注销连接并清除在线标记
// 仅当当前登记的连接就是传入连接时才移除，避免挤掉后来的连接
func (r *Registry) Unregister(ctx context.Context, userID int64, conn Conn) {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if ok && current == conn {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
	if !ok || current != conn {
		return
	}

	metrics.GetMetrics().ChatConnClosed()
	r.clearPresence(ctx, userID)
}

// Push 向在线用户推送一条消息，返回是否送达
func (r *Registry) Push(userID int64, v interface{}) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := conn.WriteJSON(v); err != nil {
		logger.Warn("聊天消息推送失败", logger.UserID(userID), logger.Err(err))
		return false
	}
	return true
}

// IsOnline 用户是否在线（本实例连接表）
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Touch 刷新在线标记（心跳时调用）
func (r *Registry) Touch(ctx context.Context, userID int64) {
	r.setPresence(ctx, userID)
}

func (r *Registry) setPresence(ctx context.Context, userID int64) {
	if cache.GetClient() == nil {
		return
	}
	key := cache.BuildKey(cache.KeyPrefixPresence, fmt.Sprintf("%d", userID))
	if err := cache.SetString(ctx, key, "1", r.presenceTTL); err != nil {
		logger.Warn("写入在线标记失败", logger.UserID(userID), logger.Err(err))
	}
}

func (r *Registry) clearPresence(ctx context.Context, userID int64) {
	if cache.GetClient() == nil {
		return
	}
	key := cache.BuildKey(cache.KeyPrefixPresence, fmt.Sprintf("%d", userID))
	if err := cache.Delete(ctx, key); err != nil {
		logger.Warn("清除在线标记失败", logger.UserID(userID), logger.Err(err))
	}
}
