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
	"os"
	"os/signal"
	"syscall"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/config"
	"iamblessed-funnel-go/internal/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting IamBlessedAF funnel API")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	auth := server.AuthConfig{JWTSecret: cfg.Supabase.JWTSecret}
	if services.Supabase != nil {
		auth.Users = services.Supabase
	}
	if auth.JWTSecret == "" && auth.Users == nil {
		zap.L().Warn("No SUPABASE_JWT_SECRET or SUPABASE_URL set, authenticated routes will reject every request")
	}

	srv := server.New(server.Config{
		Service:        services.Funnel,
		Auth:           auth,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		TrustedProxies: cfg.Server.TrustedProxies,
		SystemPrompt:   cfg.Assistant.SystemPrompt,
	})

	if err := srv.ListenAndServe(ctx, cfg.Server.Port, cfg.Server.ShutdownTimeout); err != nil {
		zap.L().Error("HTTP server stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("HTTP server stopped gracefully")
}
