package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// runJanitor cancels orders left waiting for payment and drops carts nobody
// touched within the configured TTLs.
func runJanitor(ctx context.Context, svc *services, interval, pendingTTL, cartTTL time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sweep(ctx, svc, pendingTTL, cartTTL)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, svc *services, pendingTTL, cartTTL time.Duration) {
	now := time.Now()
	if pendingTTL > 0 {
		n, err := svc.orders.ExpirePending(ctx, now.Add(-pendingTTL))
		if err != nil {
			log.Warnw("expire pending orders failed", "error", err)
		} else if n > 0 {
			log.Infow("expired pending orders", "count", n)
		}
	}
	if cartTTL > 0 {
		n, err := svc.carts.PurgeStale(ctx, now.Add(-cartTTL))
		if err != nil {
			log.Warnw("purge stale carts failed", "error", err)
		} else if n > 0 {
			log.Infow("purged stale carts", "count", n)
		}
	}
}
