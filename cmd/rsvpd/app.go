package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/cactusmakesperfect/rsvp/httpapi"
	"github.com/cactusmakesperfect/rsvp/internal/appconfig"
	"github.com/cactusmakesperfect/rsvp/mailer"
	otelexport "github.com/cactusmakesperfect/rsvp/metrics/export/otel"
	promexport "github.com/cactusmakesperfect/rsvp/metrics/export/prometheus"
	"github.com/cactusmakesperfect/rsvp/storage/gormstore"
	"github.com/cactusmakesperfect/rsvp/storage/redisstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app owns every long-lived resource rsvpd opens.
type app struct {
	svc     *rsvp.Service
	server  *httpapi.Server
	closers []func(context.Context) error
}

func newApp(ctx context.Context, s appconfig.Settings, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	builder := rsvp.New().
		WithConfig(s.Service).
		WithLogger(logger)

	var rdb redis.UniversalClient
	if s.RedisURL != "" {
		opts, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			return nil, errors.Join(rsvp.ErrConfiguration, fmt.Errorf("parse redis url: %w", err))
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		rdb = client
		builder.WithRedis(rdb)
	}

	var db *gorm.DB
	switch {
	case s.DatabaseURL != "":
		db, err = gormstore.Open(s.DatabaseDriver, s.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		store := gormstore.New(db, logger)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		builder.WithStore(store).
			WithGuestDirectory(store).
			WithAuditSink(rsvp.MultiSink{gormstore.NewActivitySink(db, logger)})
		logger.Info("using sql store", zap.String("driver", s.DatabaseDriver))
	case rdb != nil:
		builder.WithStore(redisstore.New(rdb, s.RSVPPrefix))
		logger.Info("using redis store")
	default:
		builder.WithStore(rsvp.NewMemoryStore())
		logger.Warn("no DATABASE_URL or REDIS_URL set, RSVPs are kept in memory")
	}

	if s.SMTPEnabled() {
		m, err := mailer.NewSMTPMailer(s.SMTP)
		if err != nil {
			return nil, errors.Join(rsvp.ErrConfiguration, err)
		}
		builder.WithMailer(m)
	} else {
		builder.WithMailer(mailer.NewLogMailer(logger))
	}

	svc, err := builder.Build()
	if err != nil {
		return nil, err
	}
	a.svc = svc
	a.closers = append(a.closers, svc.Close)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(svc),
	)

	if s.OTelStdout {
		if err := a.startOTel(svc); err != nil {
			return nil, err
		}
	}

	a.server = httpapi.NewServer(svc, httpapi.Options{
		Logger:         logger,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AllowOrigins:   s.AllowOrigins,
	})

	report := svc.SecurityReport()
	logger.Info("service ready",
		zap.String("login_mode", report.LoginMode),
		zap.Bool("production_mode", report.ProductionMode),
		zap.Bool("code_disclosed", report.CodeDisclosed),
		zap.Bool("rate_limiting", report.RateLimitingActive),
		zap.Bool("invite_only", report.InviteOnly),
	)
	if report.CodeDisclosed {
		logger.Warn("login codes are disclosed in responses; do not expose this instance publicly")
	}
	return a, nil
}

func (a *app) startOTel(svc *rsvp.Service) error {
	exp, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("create stdout metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
	)
	otel.SetMeterProvider(provider)
	a.closers = append(a.closers, provider.Shutdown)

	exporter, err := otelexport.NewExporter(provider.Meter("github.com/cactusmakesperfect/rsvp"), svc)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return exporter.Close() })
	return nil
}

func (a *app) handler() http.Handler {
	return a.server.Handler()
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
