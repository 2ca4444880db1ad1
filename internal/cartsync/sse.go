package cartsync

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
)

const (
	EventCartChanged  = "cart-changed"
	keepAliveInterval = 15 * time.Second
	countTimeout      = 5 * time.Second
)

type streamConfig struct {
	keepAlive time.Duration
}

type StreamOption func(*streamConfig)

// WithKeepAlive sets how often an idle stream sends a comment line.
func WithKeepAlive(d time.Duration) StreamOption {
	return func(c *streamConfig) {
		if d > 0 {
			c.keepAlive = d
		}
	}
}

// CountLookup returns the current item count of a session's cart.
type CountLookup func(ctx context.Context, sessionID string) (int, error)

// StreamHandler streams cart-changed events for the :session_id route param.
// The first event carries the count at connect time so late subscribers do
// not depend on a future signal.
//
// The server's WriteTimeout is applied once per response, so the stream
// pushes the connection write deadline forward before every write instead.
func StreamHandler(bus *Bus, count CountLookup, opts ...StreamOption) fiber.Handler {
	cfg := streamConfig{keepAlive: keepAliveInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	writeWindow := cfg.keepAlive + countTimeout

	return func(c *fiber.Ctx) error {
		sessionID := c.Params("session_id")
		if sessionID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "session_id is required"})
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		signals := make(chan struct{}, 1)
		unsubscribe := bus.OnCartChanged(func(changed string) {
			if changed != sessionID {
				return
			}
			select {
			case signals <- struct{}{}:
			default:
			}
		})

		conn := c.Context().Conn()
		extend := func() {
			if conn != nil {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWindow))
			}
		}

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			push := func() error {
				extend()
				ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
				n, err := count(ctx, sessionID)
				cancel()
				if err != nil {
					log.Warnw("cart count for stream failed", "session_id", sessionID, "error", err)
					n = 0
				}
				return writeEvent(w, EventCartChanged, fmt.Sprintf(`{"count":%d}`, n))
			}

			if err := push(); err != nil {
				return
			}

			keepAlive := time.NewTicker(cfg.keepAlive)
			defer keepAlive.Stop()
			for {
				select {
				case <-signals:
					if err := push(); err != nil {
						return
					}
				case <-keepAlive.C:
					extend()
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		}))
		return nil
	}
}

func writeEvent(w *bufio.Writer, event, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
