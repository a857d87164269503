/*
Copyright 2025 The Kioskline Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	resolverconfig "github.com/kioskline/resolver/pkg/config"
	"github.com/kioskline/resolver/pkg/geo"
	"github.com/kioskline/resolver/pkg/localcache"
	"github.com/kioskline/resolver/pkg/prommetrics"
	"github.com/kioskline/resolver/pkg/resolver"
)

func main() {
	var configPath string
	var contentDir string
	flag.StringVar(&configPath, "config", "resolver.toml", "path to the resolver's TOML configuration file")
	flag.StringVar(&contentDir, "content-dir", "content", "directory holding cached layout files")
	flag.Parse()

	cfg, err := resolverconfig.Load(configPath)
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg.LogLevel)
	setupLog := log.WithName("setup")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := localcache.NewManager(contentDir)

	metricsServer := prommetrics.Server(log, cfg.MetricsAddress)
	defer metricsServer.Close()

	geoWatcher := geo.NewWatcher(log, geo.NoopSource{}, nil)

	res := resolver.New(log, resolver.Config{
		TickInterval:          cfg.TickInterval(),
		ScreenshotInterval:    cfg.ScreenshotInterval(),
		ExpireModifiedLayouts: cfg.ExpireModifiedLayouts,
		AdExchangeEnabled:     cfg.AdExchangeEnabled,
	}, resolver.Options{
		SchedulePath: cfg.SchedulePath,
		Cache:        cache,
		GeoWatcher:   geoWatcher,
	}, resolver.Listeners{
		OnNewScheduleAvailable: func() { setupLog.Info("schedule changed") },
	})

	setupLog.Info("starting resolver", "schedulePath", cfg.SchedulePath, "tickInterval", cfg.TickInterval())
	if err := res.Run(ctx); err != nil {
		setupLog.Error(err, "resolver loop exited with error")
		os.Exit(1)
	}
}

func newLogger(level string) logr.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	zl, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return zapr.NewLogger(zl)
}
