package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/gym-backend/internal/booking"
	"github.com/iliyamo/gym-backend/internal/config"
	"github.com/iliyamo/gym-backend/internal/database"
	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/queue"
	"github.com/iliyamo/gym-backend/internal/repository"
	"github.com/iliyamo/gym-backend/internal/repository/memory"
	"github.com/iliyamo/gym-backend/internal/router"
)

// storage is the persistence selected by STORAGE_DRIVER.
type storage struct {
	users       handler.UserStore
	classes     handler.ClassStore
	memberships handler.MembershipStore
	trainers    handler.TrainerStore
	dashboards  handler.DashboardStore
	gateway     booking.Gateway
	close       func() error
}

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer func() { _ = st.close() }()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		logger.Warnf("redis unavailable, cache and rate limiting disabled: %v", err)
		rdb = nil
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var events queue.Sink = queue.NopSink{}
	if cfg.AMQP.Enabled {
		pub := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		defer func() { _ = pub.Close() }()
		events = pub
		go func() {
			if err := queue.StartConsumer(ctx, cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.LogDir, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("booking log consumer stopped: %v", err)
			}
		}()
	}

	engine := booking.New(st.gateway,
		booking.WithEvents(events),
		booking.WithLogger(logger),
		booking.WithRetry(cfg.BookingMaxRetries, cfg.BookingRetryBackoff),
	)

	classes := handler.NewClassHandler(st.classes, st.users, cfg.RequestTimeout)
	classes.Waitlist = engine

	e := router.New(router.Deps{
		JWTSecret:   cfg.JWTSecret,
		RateLimit:   config.LoadRateLimitConfig(),
		Cache:       config.LoadCacheConfig(),
		Redis:       rdb,
		Logger:      logger,
		Auth:        handler.NewAuthHandler(cfg, st.users),
		Classes:     classes,
		Bookings:    handler.NewBookingHandler(engine, cfg.RequestTimeout),
		Memberships: handler.NewMembershipHandler(st.memberships, st.users, cfg.RequestTimeout),
		Trainers:    handler.NewTrainerHandler(st.trainers, st.users, st.classes, cfg.RequestTimeout),
		Dashboards:  handler.NewDashboardHandler(st.dashboards, cfg.RequestTimeout),
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Infof("listening on %s (env=%s, storage=%s)", addr, cfg.Env, cfg.StorageDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func newLogger(level string) *log.Logger {
	l := log.New("gym")
	l.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`)
	switch level {
	case "debug":
		l.SetLevel(log.DEBUG)
	case "warn":
		l.SetLevel(log.WARN)
	case "error":
		l.SetLevel(log.ERROR)
	default:
		l.SetLevel(log.INFO)
	}
	return l
}

func openStorage(ctx context.Context, cfg config.Config, logger *log.Logger) (storage, error) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := memory.New()
		return storage{
			users:       mem.Users(),
			classes:     mem.Classes(),
			memberships: mem.Memberships(),
			trainers:    mem.Trainers(),
			dashboards:  mem.Dashboards(),
			gateway:     mem,
			close:       func() error { return nil },
		}, nil
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return storage{}, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return storage{}, err
		}
		logger.Info("schema migrated")
	}
	return storage{
		users:       repository.NewUserRepo(db),
		classes:     repository.NewClassRepo(db),
		memberships: repository.NewMembershipRepo(db),
		trainers:    repository.NewTrainerRepo(db),
		dashboards:  repository.NewDashboardRepo(db),
		gateway:     repository.NewBookingRepo(db),
		close:       db.Close,
	}, nil
}
