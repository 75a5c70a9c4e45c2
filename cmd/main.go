package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"restaurant-orders/internal/cache"
	"restaurant-orders/internal/config"
	"restaurant-orders/internal/database"
	"restaurant-orders/internal/httpapi"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/scheduler"
	"restaurant-orders/internal/services/catalog"
	"restaurant-orders/internal/services/kitchen"
	"restaurant-orders/internal/services/notification"
	"restaurant-orders/internal/services/order"
	"restaurant-orders/internal/services/payment"
	"restaurant-orders/internal/services/table"
	"restaurant-orders/internal/store"
	"restaurant-orders/internal/store/memstore"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

func main() {
	var (
		mode              = flag.String("mode", "", "Service mode (order-service, kitchen-worker, notification-subscriber)")
		configFile        = flag.String("config", "config.yaml", "Path to the YAML config file")
		storeKind         = flag.String("store", storePostgres, "Record store for order-service (postgres, memory)")
		port              = flag.Int("port", 0, "HTTP port, overrides server.port")
		workerName        = flag.String("worker-name", "", "Worker name (required for kitchen-worker mode)")
		stations          = flag.String("stations", "", "Comma-separated kitchen types the worker serves (HOT_KITCHEN, COLD_KITCHEN, BAR)")
		heartbeatInterval = flag.Int("heartbeat-interval", 30, "Heartbeat interval in seconds")
		prefetch          = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":  *mode,
		"store": *storeKind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, log, *storeKind)
	case "kitchen-worker":
		if *workerName == "" {
			err = errors.New("--worker-name is required for kitchen-worker mode")
			break
		}
		err = runKitchenWorker(ctx, cfg, log, *workerName, kitchen.Options{
			Stations:          models.ParseKitchenTypes(*stations),
			HeartbeatInterval: time.Duration(*heartbeatInterval) * time.Second,
		}, *prefetch)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// engine is the shared wiring behind the order service and kitchen workers
type engine struct {
	store     store.Store
	locks     *keylock.Locker
	catalog   *catalog.Catalog
	scheduler *scheduler.Scheduler
	notifier  messaging.Notifier
	orders    *order.Service
	ping      func(ctx context.Context) error
	closers   []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newEngine(ctx context.Context, cfg *config.Config, log *logger.Logger, storeKind string) (*engine, error) {
	e := &engine{locks: keylock.New()}
	requestID := logger.GenerateRequestID()

	switch storeKind {
	case storePostgres:
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		e.closers = append(e.closers, db.Close)
		if err := db.RunMigrations(ctx); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		e.store = database.NewStore(db)
		e.ping = db.Ping
	case storeMemory:
		e.store = memstore.NewSeeded()
		log.Info("memory_store", "Using seeded in-memory store; data is lost on exit", requestID, nil)
	default:
		return nil, fmt.Errorf("unknown store: %s", storeKind)
	}

	menuCache, err := newMenuCache(ctx, cfg, log)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.catalog = catalog.New(e.store, menuCache, cfg.Engine.MenuCacheTTL, log)

	e.notifier = messaging.NoopNotifier{}
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to initialize messaging: %w", err)
		}
		e.closers = append(e.closers, func() { conn.Close() })
		e.notifier = messaging.NewPublisher(conn, log)
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)
	}

	e.scheduler = scheduler.New(cfg.Engine.SchedulerWorkers, cfg.Engine.TaskTimeout, log)
	e.scheduler.Start()

	e.orders = order.NewService(e.store, e.catalog, e.locks, e.scheduler, e.notifier, log, order.Options{
		AutoAdvanceDelay: cfg.Engine.AutoAdvanceDelay,
		AddedItemPrefix:  cfg.Engine.AddedItemPrefix,
	})
	return e, nil
}

// newMenuCache returns Redis when enabled, else an in-process cache. The
// in-process janitor stops with ctx.
func newMenuCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.Cache, error) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: "menu",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		log.Info("redis_connected", "Menu cache backed by Redis", "", map[string]interface{}{
			"addr": cfg.Redis.Addr,
		})
		return rc, nil
	}

	mc := cache.NewMemoryCache()
	mc.StartJanitor(ctx, cfg.Engine.MenuCacheTTL)
	return mc, nil
}

// runOrderService serves the order, payment and table APIs
func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, storeKind string) error {
	requestID := logger.GenerateRequestID()

	e, err := newEngine(ctx, cfg, log, storeKind)
	if err != nil {
		return err
	}
	defer e.Close()

	recorder := payment.NewRecorder(e.store, e.locks, e.notifier, log, cfg.Payment.ReceiptPrefix)
	tables := table.NewRegistry(e.store, e.locks, log)

	router := chi.NewRouter()
	router.Use(httpapi.Logging(log))
	order.NewHandler(e.orders, log, e.ping).RegisterRoutes(router)
	payment.NewHandler(recorder, log).RegisterRoutes(router)
	table.NewHandler(tables, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("service_started", fmt.Sprintf("Order Service started on port %d", cfg.Server.Port), requestID, map[string]interface{}{
			"port":               cfg.Server.Port,
			"auto_advance_delay": cfg.Engine.AutoAdvanceDelay.String(),
			"scheduler_workers":  cfg.Engine.SchedulerWorkers,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("graceful_shutdown", "Shutting down order service", requestID, nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
		}
		if err := e.scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

// runKitchenWorker consumes kitchen tickets and reports items READY
func runKitchenWorker(ctx context.Context, cfg *config.Config, log *logger.Logger, name string, opts kitchen.Options, prefetch int) error {
	if !cfg.RabbitMQ.Enabled {
		return errors.New("kitchen-worker requires rabbitmq.enabled")
	}

	// Tickets refer to rows in the shared database, so the worker always uses Postgres.
	e, err := newEngine(ctx, cfg, log, storePostgres)
	if err != nil {
		return err
	}
	defer e.Close()
	defer e.scheduler.Stop(context.Background())

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	worker := kitchen.NewWorker(name, opts, e.orders, log)
	consumer := messaging.NewConsumer(conn, log, worker.Queue(), name, prefetch)
	defer consumer.Close()

	return worker.Run(ctx, consumer)
}

// runNotificationSubscriber prints status updates to stdout
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	if !cfg.RabbitMQ.Enabled {
		return errors.New("notification-subscriber requires rabbitmq.enabled")
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	defer consumer.Close()

	return notification.NewSubscriber(os.Stdout, log).Run(ctx, consumer)
}
