// Package ratelimiter はクライアント単位の固定ウィンドウ方式のレート制限を提供します。
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Limiter は、キー（クライアントIPなど）ごとに操作の頻度を制限するインターフェースです。
// allowed が false の場合、retryAfter は次のウィンドウが始まるまでの時間です。
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// window はキーごとのカウンタです。
type window struct {
	count     int
	lastReset time.Time
}

// RateLimiter はプロセス内メモリで動作する固定ウィンドウのレートリミッターです。
// Redisが利用できない場合のフォールバックとして使用します。
type RateLimiter struct {
	mu       sync.Mutex
	limit    int           // ウィンドウあたりの上限
	interval time.Duration // どの単位でリセットするか
	windows  map[string]*window
	now      func() time.Time
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter は新しいRateLimiterのインスタンスを生成します。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		interval: interval,
		windows:  make(map[string]*window),
		now:      time.Now,
	}
}

// Allow はキーのカウンタを進め、上限を超えていればリトライまでの時間を返します。
// 待機はせず、呼び出し側が429を返す想定です。
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	// interval を過ぎたらカウントリセット
	if !ok || now.Sub(w.lastReset) >= rl.interval {
		w = &window{lastReset: now}
		rl.windows[key] = w
		rl.sweep(now)
	}

	w.count++
	if w.count > rl.limit {
		return false, rl.interval - now.Sub(w.lastReset), nil
	}
	return true, 0, nil
}

// sweep drops expired windows so idle clients do not accumulate.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, w := range rl.windows {
		if now.Sub(w.lastReset) >= rl.interval {
			delete(rl.windows, k)
		}
	}
}
