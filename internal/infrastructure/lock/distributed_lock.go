package lock

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（互斥）
//   - EX: 过期时间（持有者崩溃时自动释放）
//   - value: 持有者标识，释放时校验，避免误删别人的锁
//
// 释放：Lua 脚本保证"检查 + 删除"原子执行
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞获取锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，锁已过期或已被他人持有时返回 ErrLockExpired
func (l *DistributedLock) Unlock(ctx context.Context) error {
	n, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockExpired
	}
	return nil
}

// ============================================================================
// 回调锁：按交易号串行化网关回调
// ============================================================================
//
// 单条记录的状态迁移由数据库条件更新保证原子性，这把锁只是让多实例部署下
// 同一笔交易的重复回调排队执行，减少无谓的冲突写。

const callbackLockPrefix = "ledger:callback:lock:"

// CallbackLocker 实现 service.CallbackLocker
type CallbackLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewCallbackLocker(client *redis.Client, ttl time.Duration) *CallbackLocker {
	return &CallbackLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    40,
	}
}

// Acquire 获取交易的回调锁，返回释放函数
func (c *CallbackLocker) Acquire(ctx context.Context, transactionID string) (func(), error) {
	l := NewDistributedLock(c.client, callbackLockPrefix+transactionID, uuid.NewString(), c.ttl)
	if err := l.Lock(ctx, c.retryInterval, c.maxRetries); err != nil {
		return nil, err
	}

	release := func() {
		// 调用方的 ctx 可能已超时，释放时单独给一个短超时
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Unlock(ctx); err != nil {
			log.Printf("[CallbackLock] 释放锁失败, transaction_id=%s: %v", transactionID, err)
		}
	}
	return release, nil
}
