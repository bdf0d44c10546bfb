package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grocery-fleet/internal/common/config"
	"grocery-fleet/internal/common/logger"
	"grocery-fleet/internal/microservices/analytics"
	"grocery-fleet/internal/microservices/robot"
)

func main() {
	mode := flag.String("mode", "", "robot-worker | analytics-collector")
	cfgPath := flag.String("config", ".env", "KEY=VALUE or YAML config file; a missing file is ignored")
	aisle := flag.String("aisle", "", "robot-worker: assigned aisle (overrides ROBOT_AISLE)")
	robotID := flag.String("robot-id", "", "robot-worker: robot id (overrides ROBOT_ID)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *aisle != "" {
		cfg.Robot.Aisle = *aisle
	}
	if *robotID != "" {
		cfg.Robot.ID = *robotID
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var run func(context.Context, config.App, *logger.Logger) error
	switch *mode {
	case "robot-worker":
		run = robot.Run
	case "analytics-collector":
		run = analytics.Run
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: robot-worker | analytics-collector")
		os.Exit(2)
	}

	lg := logger.New(*mode, cfg.LogLevel)
	lg.Info("service_started", map[string]any{"mode": *mode, "config": *cfgPath})
	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
	lg.Info("service_stopped", nil)
}
