package client

import (
	"context"
	"time"

	"github.com/wichananm65/ebook-storefront/internal/cartsync"
	"github.com/wichananm65/ebook-storefront/internal/feed"
)

// WatchCart keeps a cart count fresh for sessionID: it refreshes whenever
// the bus signals that session and every interval otherwise. onChange
// receives each new count. It blocks until ctx is done.
func (c *Client) WatchCart(ctx context.Context, bus *cartsync.Bus, sessionID string, interval time.Duration, onChange func(int)) error {
	r := cartsync.NewReconciler(
		func(ctx context.Context) (int, error) { return c.CartCount(ctx, sessionID) },
		cartsync.WithInterval(interval),
		cartsync.WithOnChange(onChange),
	)
	if bus != nil {
		detach := r.Attach(bus, sessionID)
		defer detach()
	}
	return r.Run(ctx)
}

// WatchFeed shows recent purchases one at a time. The list is re-fetched
// when the ticker runs dry; a failed fetch keeps the previous list.
func (c *Client) WatchFeed(ctx context.Context, every time.Duration, limit int, show func(feed.Purchase)) error {
	t := feed.NewTicker[feed.Purchase](nil, nil)
	load := func() {
		items, err := c.RecentPurchases(ctx, limit)
		if err == nil && len(items) > 0 {
			t.Reset(items)
		}
	}
	load()

	tick := time.NewTicker(every)
	defer tick.Stop()
	shown := 0
	for {
		if p, ok := t.Next(); ok {
			show(p)
			shown++
			if shown >= t.Len() {
				shown = 0
				load()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
