package server

import (
	"context"
	"time"

	"backend-mchanga/internal/config"
	"backend-mchanga/internal/db"
	"backend-mchanga/internal/emergency"
	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/maintenance"
	"backend-mchanga/internal/metrics"
	"backend-mchanga/internal/stream"
	"backend-mchanga/internal/tracking"
	"backend-mchanga/internal/vehicle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub

	Vehicles  *vehicle.Store
	Tracking  *tracking.Coordinator
	Emergency *emergency.Coordinator
	Scheduler *maintenance.Scheduler

	emergencies *emergency.PgStore
	services    *maintenance.PgStore
	registry    *prometheus.Registry
	log         zerolog.Logger
	started     time.Time
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pool,
		Redis:    redisClient,
		registry: prometheus.NewRegistry(),
		log:      logging.New("server"),
		started:  time.Now(),
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(s.registry)
	if err != nil {
		s.log.Error().Err(err).Msg("metrics disabled")
	}

	q := dbOrNil(pool)
	s.Stream = stream.NewHub(redisClient,
		stream.WithLogger(logging.New("stream")),
		stream.WithMetrics(m),
		stream.WithSendBuffer(cfg.WSSendBuffer))
	s.Vehicles = vehicle.NewStore(q)
	s.emergencies = emergency.NewStore(q)
	s.services = maintenance.NewStore(q)

	trackingOpts := []tracking.Option{tracking.WithLogger(logging.New("tracking"))}
	if redisClient != nil {
		trackingOpts = append(trackingOpts, tracking.WithLiveState(tracking.NewRedisLiveState(redisClient, cfg.LiveStateTTL)))
	}
	s.Tracking = tracking.NewCoordinator(s.Vehicles, s.Stream, trackingOpts...)

	s.Emergency = emergency.NewCoordinator(s.emergencies, s.Stream,
		emergency.WithFanout(cfg.AlertFanout),
		emergency.WithLogger(logging.New("emergency")),
		emergency.WithMetrics(m))

	schedOpts := []maintenance.Option{
		maintenance.WithLogger(logging.New("maintenance")),
		maintenance.WithMetrics(m),
	}
	if cfg.ReminderLead > 0 {
		schedOpts = append(schedOpts, maintenance.WithLead(cfg.ReminderLead))
	}
	s.Scheduler = maintenance.NewScheduler(s.services, s.Stream, schedOpts...)

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	var pg db.Pinger
	if s.DB != nil {
		pg = s.DB
	}
	rdb := db.RedisPinger(s.Redis)

	s.App.Get("/api/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		now := time.Now()
		return c.JSON(fiber.Map{
			"status":      "ok",
			"timestamp":   now.UTC(),
			"uptime":      now.Sub(s.started).Seconds(),
			"postgres":    db.PingState(ctx, pg),
			"redis":       db.PingState(ctx, rdb),
			"connections": s.Stream.ConnectionCount(),
		})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	stream.RegisterRoutes(s.App, s.Stream)
	tracking.RegisterEvents(s.Stream, s.Tracking)
	emergency.RegisterEvents(s.Stream, s.Emergency)
	maintenance.RegisterEvents(s.Stream, s.Scheduler)

	api := s.App.Group("/api")
	vehicle.RegisterRoutes(api.Group("/vehicles"), s.Vehicles, s.Tracking)
	tracking.RegisterRoutes(api.Group("/tracking"), s.Tracking)
	emergency.RegisterRoutes(api.Group("/emergencies"), s.emergencies, s.Emergency)
	maintenance.RegisterRoutes(api.Group("/services"), s.services, s.Scheduler)
}

// Close stops pending reminders.
func (s *Server) Close() {
	s.Scheduler.Stop()
}

// dbOrNil keeps a missing pool a nil interface rather than a typed nil.
func dbOrNil(pool *pgxpool.Pool) db.Querier {
	if pool == nil {
		return nil
	}
	return pool
}
