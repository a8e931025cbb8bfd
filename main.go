package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/app"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
)

func main() {
	logger := config.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Fatalw("Invalid configuration", "field", cfgErr.Field, "error", err)
		}
		logger.Fatalw("WeatherLink accessory stopped", "error", err)
	}
}

func run(ctx context.Context) error {
	opts, err := app.OptionsFromConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
