package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/ebook-storefront/internal/auth"
	"github.com/wichananm65/ebook-storefront/internal/cart"
	"github.com/wichananm65/ebook-storefront/internal/cartsync"
	"github.com/wichananm65/ebook-storefront/internal/config"
	"github.com/wichananm65/ebook-storefront/internal/contact"
	"github.com/wichananm65/ebook-storefront/internal/database"
	"github.com/wichananm65/ebook-storefront/internal/events"
	"github.com/wichananm65/ebook-storefront/internal/feed"
	"github.com/wichananm65/ebook-storefront/internal/mailer"
	"github.com/wichananm65/ebook-storefront/internal/order"
	"github.com/wichananm65/ebook-storefront/internal/payment"
	"github.com/wichananm65/ebook-storefront/internal/product"
	"github.com/wichananm65/ebook-storefront/internal/recommended"
	"github.com/wichananm65/ebook-storefront/internal/session"
	"github.com/wichananm65/ebook-storefront/internal/testimonial"
)

// backends holds every storage and integration the services depend on.
type backends struct {
	products     product.Repository
	carts        cart.Repository
	orders       order.Repository
	testimonials testimonial.Repository
	contacts     contact.Repository
	cache        cart.Cache
	publisher    events.Publisher
	gateway      payment.Gateway
	mailer       *mailer.Mailer

	closers []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warnw("close backend failed", "error", err)
		}
	}
}

// memoryBackends keeps everything in process. Used by tests and by
// STORE_BACKEND=memory.
func memoryBackends() *backends {
	return &backends{
		products:     product.NewInMemoryRepository(nil),
		carts:        cart.NewInMemoryRepository(nil),
		orders:       order.NewInMemoryRepository(nil),
		testimonials: testimonial.NewInMemoryRepository(nil),
		contacts:     contact.NewInMemoryRepository(),
		cache:        cart.NoopCache{},
		publisher:    events.LogPublisher{},
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := memoryBackends()

	var db *sql.DB
	if cfg.Database.StoreBackend == config.BackendPostgres || cfg.Database.CartBackend == config.BackendPostgres {
		var err error
		db, err = database.Open(&cfg.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := database.MigrateUp(db, cfg.Database.MigrationsPath); err != nil {
			b.Close()
			return nil, err
		}
	}

	if cfg.Database.StoreBackend == config.BackendPostgres {
		b.products = product.NewPostgresRepository(db)
		b.orders = order.NewPostgresRepository(db)
		b.testimonials = testimonial.NewPostgresRepository(db)
		b.contacts = contact.NewPostgresRepository(db)
	}

	switch cfg.Database.CartBackend {
	case config.BackendPostgres:
		b.carts = cart.NewPostgresRepository(db)
	case config.BackendMongo:
		mdb, err := cart.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() error { return mdb.Client().Disconnect(context.Background()) })
		repo := cart.NewMongoRepository(mdb, cfg.Checkout.CartTTL)
		if err := repo.CreateIndexes(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.carts = repo
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unavailable, cart cache disabled", "addr", cfg.Redis.Addr, "error", err)
			_ = rdb.Close()
		} else {
			b.cache = cart.NewRedisCache(rdb)
			b.closers = append(b.closers, rdb.Close)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p := events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		b.publisher = p
		b.closers = append(b.closers, p.Close)
	}

	if cfg.Checkout.Mode == config.CheckoutGateway {
		b.gateway = payment.NewRazorpayClient(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Timeout)
	}

	if cfg.SMTP.Enabled() {
		b.mailer = mailer.New(mailer.Config{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			User:      cfg.SMTP.User,
			Password:  cfg.SMTP.Password,
			FromEmail: cfg.SMTP.FromEmail,
		}, mailer.WithRecommender(recommended.NewService(b.products)))
	}
	return b, nil
}

// services is what the janitor and main need after routes are mounted.
type services struct {
	bus    *cartsync.Bus
	carts  *cart.Service
	orders *order.Service
}

func newApp(cfg *config.Config, b *backends) (*fiber.App, *services) {
	app := fiber.New(fiber.Config{
		AppName:      "ebook-storefront",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.Server.AllowOrigins != "*",
	}))
	app.Use(session.Middleware())

	bus := cartsync.NewBus()

	productService := product.NewService(b.products)
	cartService := cart.NewService(b.carts, productService,
		cart.WithCache(b.cache),
		cart.WithNotifier(bus),
	)
	orderService := order.NewService(b.orders, cartService, productService,
		order.WithPublisher(b.publisher),
		order.WithDirectCheckout(cfg.Checkout.Mode == config.CheckoutDirect),
		order.WithRequireAddress(cfg.Checkout.RequireAddress),
	)

	paymentOpts := []payment.Option{payment.WithPublisher(b.publisher)}
	var notifier contact.Notifier
	if b.mailer != nil {
		paymentOpts = append(paymentOpts, payment.WithMailer(b.mailer))
		notifier = b.mailer
	}
	paymentService := payment.NewService(orderService, cartService, b.gateway, payment.Config{
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Currency:  cfg.Payment.Currency,
	}, paymentOpts...)

	productHandler := product.NewHandler(productService)
	cartHandler := cart.NewHandler(cartService, bus)
	feedHandler := feed.NewHandler(feed.NewService(orderService))
	orderHandler := order.NewHandler(orderService)
	paymentHandler := payment.NewHandler(paymentService)
	contactHandler := contact.NewHandler(contact.NewService(b.contacts, notifier))
	testimonialHandler := testimonial.NewHandler(b.testimonials)
	recommendedHandler := recommended.NewHandler(recommended.NewService(productService))
	authHandler := auth.NewHandler(auth.NewService(cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash, cfg.Auth.JWTSecret))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	session.RegisterPublicRoutes(app)
	productHandler.RegisterPublicRoutes(app)
	recommendedHandler.RegisterPublicRoutes(app)
	cartHandler.RegisterPublicRoutes(app)
	// before order routes so it does not match /orders/:order_number
	feedHandler.RegisterPublicRoutes(app)
	orderHandler.RegisterPublicRoutes(app)
	paymentHandler.RegisterPublicRoutes(app)
	contactHandler.RegisterPublicRoutes(app)
	testimonialHandler.RegisterPublicRoutes(app)
	authHandler.RegisterPublicRoutes(app)

	app.Use(auth.Middleware(cfg.Auth.JWTSecret))

	productHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)
	contactHandler.RegisterProtectedRoutes(app)

	return app, &services{bus: bus, carts: cartService, orders: orderService}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	message := err.Error()
	if code >= fiber.StatusInternalServerError {
		log.Errorw("request failed", "path", c.Path(), "error", err)
		message = "Internal Server Error"
	}
	return c.Status(code).JSON(fiber.Map{"message": message})
}
