package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// item 包装缓存数据和过期时间
type item struct {
	data      []byte
	expiresAt time.Time
}

// LRU 本地缓存，容量满时淘汰最久未使用的 key
type LRU struct {
	mu  sync.Mutex
	lru *lru.Cache[string, item]
	now func() time.Time
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, item](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{lru: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *LRU) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, item{data: data, expiresAt: c.now().Add(ttl)})
	return nil
}

// Get 获取缓存，不存在或已过期返回 false
func (c *LRU) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	val, ok := c.lru.Get(key)
	if ok && c.now().After(val.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(val.data, dest); err != nil {
		return false, fmt.Errorf("decode cache value %q: %w", key, err)
	}
	return true, nil
}

// Delete 删除指定缓存
func (c *LRU) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}
