/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/config"
	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/jobs"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Dispatch one batch of due messages and exit")
	noCron := flag.Bool("no-cron", false, "Disable the digest and nudge jobs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting drip dispatcher")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	loc, err := time.LoadLocation(cfg.Dispatcher.TimeZone)
	if err != nil {
		zap.L().Warn("Unknown send window time zone, using UTC",
			zap.String("tz", cfg.Dispatcher.TimeZone), zap.Error(err))
		loc = time.UTC
	}

	dispatcher := drip.NewDispatcher(drip.DispatcherConfig{
		Messages:      services.DbService,
		Funnel:        services.DbService,
		Sender:        services.Senders,
		Data:          services.Funnel,
		StaleCheckers: []drip.StaleChecker{services.JoyKeys},
		Window: drip.SendWindow{
			StartHour: cfg.Dispatcher.WindowStartHour,
			EndHour:   cfg.Dispatcher.WindowEndHour,
			Location:  loc,
		},
		AdminEmail:      cfg.Dispatcher.AdminEmail,
		PollingInterval: cfg.Dispatcher.PollingInterval,
		CleanupInterval: cfg.Dispatcher.CleanupInterval,
		BatchSize:       cfg.Dispatcher.BatchSize,
		Concurrency:     cfg.Dispatcher.Concurrency,
	})

	if *once {
		sent, err := dispatcher.RunOnce(ctx)
		if err != nil {
			zap.L().Fatal("Dispatch failed", zap.Error(err))
		}
		zap.L().Info("Dispatched due messages", zap.Int("processed", sent))
		return
	}

	var runner *jobs.Runner
	if !*noCron {
		runner, err = jobs.NewRunner(jobs.RunnerConfig{
			Funnel:         services.DbService,
			Scheduler:      services.Scheduler,
			Sender:         services.Senders,
			AdminEmail:     cfg.Dispatcher.AdminEmail,
			DigestSchedule: cfg.Dispatcher.DigestSchedule,
			NudgeSchedule:  cfg.Dispatcher.NudgeSchedule,
			NudgeAfter:     cfg.Dispatcher.NudgeAfter,
			Location:       loc,
		})
		if err != nil {
			zap.L().Fatal("Failed to schedule jobs", zap.Error(err))
		}
		runner.Start()
		zap.L().Info("Cron jobs scheduled", zap.Int("entries", runner.Entries()))
	}

	dispatcher.Start(ctx)
	zap.L().Info("Dispatcher running",
		zap.Duration("polling_interval", cfg.Dispatcher.PollingInterval),
		zap.Int("batch_size", cfg.Dispatcher.BatchSize))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping dispatcher...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if runner != nil {
			runner.Stop(shutdownCtx)
		}
		dispatcher.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Dispatcher stopped gracefully",
			zap.Int64("failures", dispatcher.Failures()))
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
