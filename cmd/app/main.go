package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.SetLevel(parseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("could not open backends: %v", err)
	}
	defer b.Close()

	app, svc := newApp(cfg, b)
	defer svc.bus.Close()

	go runJanitor(ctx, svc, cfg.Checkout.JanitorInterval, cfg.Checkout.PendingOrderTTL, cfg.Checkout.CartTTL)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorw("shutdown failed", "error", err)
		}
	}()

	log.Infow("starting server", "addr", cfg.Server.Addr, "checkout_mode", cfg.Checkout.Mode,
		"store_backend", cfg.Database.StoreBackend, "cart_backend", cfg.Database.CartBackend)
	if err := app.Listen(cfg.Server.Addr); err != nil {
		log.Errorw("server stopped", "error", err)
	}
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
