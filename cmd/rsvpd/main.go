// Command rsvpd serves the guest login and RSVP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/cactusmakesperfect/rsvp/internal/appconfig"
	"github.com/cactusmakesperfect/rsvp/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rsvpd: %v\n", err)
		if errors.Is(err, rsvp.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("rsvpd", pflag.ContinueOnError)
	appconfig.RegisterFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	dotEnvErr := appconfig.LoadDotEnv()

	settings, err := appconfig.Load(flagSet)
	if err != nil {
		return errors.Join(rsvp.ErrConfiguration, err)
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		return errors.Join(rsvp.ErrConfiguration, err)
	}
	defer func() { _ = logger.Sync() }()

	if dotEnvErr != nil {
		logger.Warn(".env file not found, using environment variables")
	}
	if settings.ConfigFile != "" {
		logger.Info("loaded config file", zap.String("path", settings.ConfigFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	a, err := newApp(ctx, settings, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", settings.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		_ = a.close(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	return a.close(shutdownCtx)
}
