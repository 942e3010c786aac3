package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ericogr/balloon-flight-controller/pkg/app"
	"github.com/ericogr/balloon-flight-controller/pkg/config"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	// one Ctrl-C ends the flight; shutdown still runs
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger.Info("starting flight controller", "board", cfg.Board, "sensors", len(cfg.Sensors), "data_dir", cfg.DataDir)
	if err = app.Run(ctx, cfg, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var logLevel slog.LevelVar
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &logLevel})), nil
}
