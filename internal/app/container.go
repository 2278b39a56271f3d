package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nekogravitycat/court-booking-engine/internal/api"
	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	"github.com/nekogravitycat/court-booking-engine/internal/config"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/db"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	"github.com/nekogravitycat/court-booking-engine/internal/payment"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
	"github.com/nekogravitycat/court-booking-engine/internal/scheduler"
)

const sweepJobName = "hold-expiry-sweep"

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Scheduler  *scheduler.Service
	Holds      hold.Service

	closers []func() error
}

type stores struct {
	courts court.Repository
	slots  availability.SlotRepository
	holds  hold.Repository
}

// NewContainer initializes all modules and returns the container.
// Close releases the connections it opened.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	st, err := c.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	publisher := c.openPublisher(cfg)
	cache := c.openCache(ctx, cfg)
	gateway, webhooks := openGateway(cfg)
	pricer := pricing.NewCalculator(cfg.VenueLocation)

	// Court Module
	courtService := court.NewService(st.courts)

	// Availability Module
	index, err := availability.NewIndex(courtService, st.slots, availability.Options{
		Granularity:  cfg.SlotGranularity,
		DefaultOpen:  cfg.DefaultOpenTime,
		DefaultClose: cfg.DefaultCloseTime,
		Location:     cfg.VenueLocation,
		Cache:        cache,
		Publisher:    publisher,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build availability index: %w", err)
	}

	// Assignment Module
	resolver := assignment.NewResolver(index)

	// Hold Module
	holdService := hold.NewService(st.holds, courtService, index, pricer, hold.Options{
		TTL:               cfg.HoldTTL,
		Grace:             cfg.HoldGraceWindow,
		IdempotencyBucket: cfg.PaymentIdempotencyTTL,
		Publisher:         publisher,
		Intents:           gateway,
	})

	// Booking Module
	bookingService := booking.NewService(booking.Deps{
		Courts:   courtService,
		Resolver: resolver,
		Pricer:   pricer,
		Holds:    holdService,
		Gateway:  gateway,
		Webhooks: webhooks,
		Currency: cfg.PaymentCurrency,
	})

	// Expiry sweep
	sched, err := scheduler.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	c.closers = append(c.closers, sched.Stop)
	if _, err := sched.AddIntervalJob(ctx, sweepJobName, cfg.HoldSweepInterval, func(ctx context.Context) error {
		_, err := holdService.SweepExpired(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", sweepJobName, err)
	}

	// Router
	router := api.NewRouter(api.Services{
		Courts:       courtService,
		Availability: index,
		Resolver:     resolver,
		Pricer:       pricer,
		Holds:        holdService,
		Booking:      bookingService,
	}, jwtManager, cfg.ProdOrigins, cfg.IsProduction)

	c.Router = router
	c.JWTManager = jwtManager
	c.Scheduler = sched
	c.Holds = holdService
	ok = true
	return c, nil
}

func (c *Container) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		courts, err := court.NewMemoryRepository(DemoCourts()...)
		if err != nil {
			return stores{}, err
		}
		log.Warn().Msg("Using in-memory stores; state is lost on restart")
		return stores{
			courts: courts,
			slots:  availability.NewMemorySlotRepository(),
			holds:  hold.NewMemoryRepository(),
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return stores{}, err
	}
	c.closers = append(c.closers, func() error { pool.Close(); return nil })
	if err := db.EnsureSchema(ctx, pool); err != nil {
		return stores{}, err
	}
	return pgxStores(pool), nil
}

func pgxStores(pool *pgxpool.Pool) stores {
	return stores{
		courts: court.NewPgxRepository(pool),
		slots:  availability.NewPgxSlotRepository(pool),
		holds:  hold.NewPgxRepository(pool),
	}
}

// openPublisher fans events out to Kafka when brokers are configured.
func (c *Container) openPublisher(cfg *config.Config) events.Publisher {
	var fanout events.Fanout
	if cfg.KafkaBrokers != "" {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn().Err(err).Msg("Kafka publisher disabled")
		} else {
			c.closers = append(c.closers, kp.Close)
			fanout = append(fanout, kp)
		}
	}
	if len(fanout) == 0 {
		return events.Nop{}
	}
	return fanout
}

// openCache returns a Redis-backed availability cache, or a no-op cache when
// Redis is not configured or unreachable.
func (c *Container) openCache(ctx context.Context, cfg *config.Config) availability.Cache {
	if cfg.RedisAddr == "" {
		return availability.NopCache{}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, availability cache disabled")
		_ = rdb.Close()
		return availability.NopCache{}
	}
	c.closers = append(c.closers, rdb.Close)
	return availability.NewRedisCache(rdb, cfg.AvailabilityCacheTTL)
}

func openGateway(cfg *config.Config) (payment.Gateway, payment.WebhookParser) {
	if cfg.StripeSecretKey != "" {
		gw := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		return gw, gw
	}
	log.Warn().Msg("STRIPE_SECRET_KEY not set, using the in-memory payment gateway")
	gw := payment.NewMemoryGateway(cfg.StripeWebhookSecret)
	return gw, gw
}

// Close stops the scheduler and releases store and broker connections in
// reverse order of opening.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
