package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"booking-app/config"
	"booking-app/database"
	accountapi "booking-app/internal/api/account"
	adminapi "booking-app/internal/api/admin"
	agentapi "booking-app/internal/api/agent"
	authapi "booking-app/internal/api/auth"
	bookingsapi "booking-app/internal/api/bookings"
	catalogapi "booking-app/internal/api/catalog"
	storefrontapi "booking-app/internal/api/storefront"
	stripewebhooks "booking-app/internal/api/stripewebhook"
	routes "booking-app/internal/app/http"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/app/notify"
	"booking-app/internal/domain/agent"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/agentruntime"
	"booking-app/internal/infra/cache"
	"booking-app/internal/infra/events"
	"booking-app/internal/infra/logger"
	"booking-app/internal/infra/mailer"
	"booking-app/internal/infra/ratelimit"
	"booking-app/internal/infra/secrets"
	stripeinfra "booking-app/internal/infra/stripe"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	serviceName       = "booking-api"
	notifyQueue       = "booking-api.notifications"
	maintenanceEvery  = 15 * time.Minute
	pendingBookingTTL = 24 * time.Hour
)

func main() {
	config.LoadEnv()
	if err := logger.Init(config.LOG_LEVEL, config.LOG_FORMAT, serviceName); err != nil {
		panic(err)
	}
	log := logger.L
	defer log.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	database.InitDB()
	db := database.DB

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, limiter, closeStores := openStores(log)
	defer closeStores()

	box, err := secrets.NewBox(config.SECRETS_MASTER_KEY)
	if err != nil {
		log.Fatal("secrets box", zap.Error(err))
	}
	commission, err := billing.ParseCommission(config.PLATFORM_COMMISSION_PERCENT)
	if err != nil {
		log.Fatal("invalid PLATFORM_COMMISSION_PERCENT", zap.Error(err))
	}

	var mail mailer.Sender = mailer.Log{L: log}
	if config.SMTP_HOST != "" {
		mail = mailer.NewSMTP(config.SMTP_HOST, config.SMTP_PORT, config.SMTP_FROM, config.SMTP_PASSWORD)
	}
	notifier := notify.New(mail, func(ctx context.Context, id string) (*tenants.Tenant, error) {
		return tenants.Get(ctx, db, id)
	}, log)

	pub, closeEvents := openEvents(ctx, notifier, log)
	defer closeEvents()

	stripeClient := stripeinfra.NewClient(config.STRIPE_SECRET_KEY)
	bookings := booking.NewService(db, pub, log)
	payments := billing.NewPayments(db, bookings, stripeClient, pub, log, config.APP_URL)

	toolbox := agent.NewToolbox(db, pub, log)
	cat, err := agent.LoadCatalog()
	if err != nil {
		log.Fatal("agent tool catalog", zap.Error(err))
	}
	executor, err := agent.NewExecutor(db, cat, toolbox.Handlers(), log)
	if err != nil {
		log.Fatal("agent executor", zap.Error(err))
	}
	runtime := agentruntime.New(config.AGENT_RUNTIME_URL, config.AGENT_RUNTIME_TOKEN, log)

	go runMaintenance(ctx, bookings, executor, log)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(config.CORS_ORIGIN, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderPublicKey},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:         db,
		Cache:      store,
		Limiter:    limiter,
		Auth:       authapi.NewHandler(db, mail, log, commission),
		Account:    accountapi.NewHandler(db, store, box, stripeClient, pub, log),
		Catalog:    catalogapi.NewHandler(db, store, log),
		Bookings:   bookingsapi.NewHandler(db, bookings, log),
		Storefront: storefrontapi.NewHandler(db, store, bookings, payments, log),
		Webhook:    stripewebhooks.NewHandler(db, payments, config.STRIPE_WEBHOOK_SECRET, log),
		Agent:      agentapi.NewHandler(db, runtime, executor, config.AGENT_CALLBACK_SECRET, log),
		Admin:      adminapi.NewHandler(db, store, log),
	})

	srv := &http.Server{
		Addr:              ":" + config.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStores picks Redis when REDIS_ADDR is set, in-memory otherwise.
func openStores(log *zap.Logger) (cache.Cache, ratelimit.Limiter, func()) {
	if config.REDIS_ADDR == "" {
		mem := cache.NewMemory(time.Minute)
		lim := ratelimit.NewMemory(time.Minute)
		log.Info("redis not configured, using in-memory cache and limiter")
		return mem, lim, func() { mem.Close(); lim.Close() }
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.REDIS_ADDR,
		Password: config.REDIS_PASSWORD,
		DB:       config.REDIS_DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.String("addr", config.REDIS_ADDR), zap.Error(err))
	}
	log.Info("redis connected", zap.String("addr", config.REDIS_ADDR))
	return cache.NewRedis(rdb, serviceName+":"), ratelimit.NewRedis(rdb), func() { rdb.Close() }
}

// openEvents publishes to RabbitMQ and runs the notification consumer when
// RABBITMQ_URL is set. Without it, notifications are delivered in-process.
func openEvents(ctx context.Context, n *notify.Notifier, log *zap.Logger) (events.Publisher, func()) {
	if config.RABBITMQ_URL == "" {
		log.Info("rabbitmq not configured, delivering notifications inline")
		return notify.Inline{N: n, Log: log}, func() {}
	}

	pub, err := events.NewRabbitPublisher(config.RABBITMQ_URL, log)
	if err != nil {
		log.Fatal("rabbitmq publisher", zap.Error(err))
	}
	consumer, err := events.NewConsumer(config.RABBITMQ_URL, notifyQueue, notify.Bindings, log)
	if err != nil {
		log.Fatal("rabbitmq consumer", zap.Error(err))
	}
	go func() {
		if err := consumer.Run(ctx, n.Handle); err != nil {
			log.Error("notification consumer stopped", zap.Error(err))
		}
	}()
	return pub, func() {
		consumer.Close()
		pub.Close()
	}
}

// runMaintenance cancels stale PENDING bookings and expires agent proposals.
func runMaintenance(ctx context.Context, bookings *booking.Service, exec *agent.Executor, log *zap.Logger) {
	t := time.NewTicker(maintenanceEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if _, err := bookings.SweepPending(ctx, pendingBookingTTL); err != nil {
			log.Warn("sweep pending bookings", zap.Error(err))
		}
		if n, err := exec.ExpireStale(ctx); err != nil {
			log.Warn("expire agent proposals", zap.Error(err))
		} else if n > 0 {
			log.Info("agent proposals expired", zap.Int64("count", n))
		}
	}
}
