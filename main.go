/*
Copyright 2022 The l7mp/stunner team.

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
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/l7mp/arrange/internal/buildinfo"
	"github.com/l7mp/arrange/pkg/arrangement"
	"github.com/l7mp/arrange/pkg/config"
	"github.com/l7mp/arrange/pkg/worker"
)

var (
	version    = "dev"
	commitHash = "n/a"
	buildDate  = "<unknown>"
)

func main() {
	var configFile, metricsAddr string
	var maintenanceInterval, statsInterval time.Duration

	flag.StringVar(&configFile, "config", "", "Path to the configuration file.")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080",
		"The address the metric endpoint binds to. Set to \"0\" to disable.")
	flag.DurationVar(&maintenanceInterval, "maintenance-interval", 0,
		"Override the maintenance interval of the configuration file.")
	flag.DurationVar(&statsInterval, "stats-interval", 10*time.Second,
		"The period at which the state of the arrangements is logged.")

	opts := zap.Options{
		Development:     true,
		DestWriter:      os.Stderr,
		StacktraceLevel: zapcore.Level(3),
		TimeEncoder:     zapcore.RFC3339NanoTimeEncoder,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	logger := zap.New(zap.UseFlagOptions(&opts))
	logf.SetLogger(logger.WithName("arrange"))
	setupLog := logger.WithName("setup")

	buildInfo := buildinfo.New(version, commitHash, buildDate)
	setupLog.Info(fmt.Sprintf("starting the trace manager %s", buildInfo.String()),
		buildInfo.KeysAndValues()...)

	if configFile == "" {
		setupLog.Error(errors.New("no config file"), "the --config flag is required")
		os.Exit(1)
	}
	c, err := config.Load(configFile)
	if err != nil {
		setupLog.Error(err, "unable to load config")
		os.Exit(1)
	}
	if maintenanceInterval > 0 {
		c.MaintenanceInterval.Duration = maintenanceInterval
	}

	manager := arrangement.NewManager(arrangement.Options{
		Logger:     logger,
		Registerer: metrics.Registry,
	})
	w := worker.New(manager, worker.Options{
		MaintenanceInterval: c.MaintenanceInterval.Duration,
		Logger:              logger,
	})

	sources := []*worker.Source{}
	for i, coll := range c.Collections {
		src, err := worker.NewSource(w, worker.SourceConfig{
			Name:          coll.Name,
			BySelf:        coll.BySelf,
			Keys:          coll.Projections(),
			Columns:       coll.Columns,
			RowsPerStep:   coll.RowsPerStep,
			CompactionLag: arrangement.Timestamp(*c.CompactionLag),
			Seed:          int64(i) + 1,
		}, logger)
		if err != nil {
			setupLog.Error(err, "unable to set up source")
			os.Exit(1)
		}
		sources = append(sources, src)
	}

	g, ctx := errgroup.WithContext(signals.SetupSignalHandler())

	g.Go(func() error { return w.Start(ctx) })

	if metricsAddr != "0" {
		g.Go(func() error { return serveMetrics(ctx, metricsAddr, setupLog) })
	}

	for _, src := range sources {
		g.Go(func() error { return runSource(ctx, src, c.StepInterval.Duration) })
	}

	g.Go(func() error {
		wait.UntilWithContext(ctx, func(ctx context.Context) { logStats(ctx, w, setupLog) }, statsInterval)
		return nil
	})

	setupLog.Info("starting trace manager", "collections", len(c.Collections))
	if err := g.Wait(); err != nil {
		setupLog.Error(err, "problem running trace manager")
		os.Exit(1)
	}
}

func runSource(ctx context.Context, src *worker.Source, interval time.Duration) error {
	if err := src.Bind(ctx); err != nil {
		return ignoreShutdown(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := src.Step(ctx); err != nil {
				return ignoreShutdown(err)
			}
		}
	}
}

func ignoreShutdown(err error) error {
	if errors.Is(err, worker.ErrStopped) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string, log logr.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:contextcheck
	}()

	log.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func logStats(ctx context.Context, w *worker.Worker, log logr.Logger) {
	stats, err := w.Stats(ctx)
	if err != nil {
		if ignoreShutdown(err) != nil {
			log.Error(err, "failed to query arrangement stats")
		}
		return
	}
	for _, cs := range stats {
		for _, as := range cs.Arrangements {
			keys := "self"
			if as.Keys != nil {
				keys = as.Keys.String()
			}
			log.V(1).Info("arrangement", "collection", cs.Name, "keys", keys, "batches", as.Batches,
				"updates", as.Updates, "upper", as.Upper, "since", as.Since)
		}
	}
}
