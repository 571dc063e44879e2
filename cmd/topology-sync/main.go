/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
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
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/topology-sync/pkg/config"
	"github.com/carverauto/topology-sync/pkg/directory"
	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
	"github.com/carverauto/topology-sync/pkg/publish"
	"github.com/carverauto/topology-sync/pkg/state"
	"github.com/carverauto/topology-sync/pkg/topology"
	"github.com/carverauto/topology-sync/pkg/transport"
)

const userAgent = "topology-sync"

func main() {
	configPath := flag.String("config", "/etc/topology-sync/config.json", "Path to config file")
	date := flag.String("d", "", "Logical run date YYYY-MM-DD (default today)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, *configPath, *date)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, date string) error {
	bootLog, err := logger.New(logger.DefaultConfig())
	if err != nil {
		log.Printf("Failed to create logger: %v", err)

		return err
	}

	var cfg config.Config

	if err := config.NewLoader(bootLog).LoadAndValidate(ctx, configPath, &cfg); err != nil {
		bootLog.Error().Err(err).Str("config", configPath).Msg("Failed to load config")

		return err
	}

	runLog, err := logger.New(cfg.Logging)
	if err != nil {
		bootLog.Error().Err(err).Msg("Failed to create logger from config")

		return err
	}

	runLog.Debug().Interface("config", cfg.Sanitized()).Msg("Loaded configuration")

	logicalDate, err := topology.LogicalDate(date, nil)
	if err != nil {
		runLog.Error().Err(err).Msg("Invalid run date")

		return err
	}

	metrics := topology.NewInMemoryMetrics(runLog.WithComponent("metrics"))

	deps, cleanup, err := buildDeps(ctx, &cfg, metrics, runLog)
	if err != nil {
		runLog.Error().Err(err).Msg("Failed to set up topology run")

		return err
	}
	defer cleanup()

	orch, err := topology.New(&cfg, deps, runLog)
	if err != nil {
		runLog.Error().Err(err).Msg("Failed to create orchestrator")

		return err
	}

	report, err := orch.Run(ctx, logicalDate)
	if err != nil {
		if errors.Is(err, topology.ErrPublish) {
			runLog.Error().Str("run_id", report.RunID).Err(err).Msg("Topology collected but not fully published")
		}

		return err
	}

	return nil
}

func retryConfig(cfg *config.Config) transport.Config {
	return transport.Config{
		Attempts:        cfg.Retry.Attempts,
		Timeout:         time.Duration(cfg.Retry.Timeout),
		Sleep:           time.Duration(cfg.Retry.Sleep),
		LinearBackoff:   cfg.Retry.Linear,
		RetryableStatus: cfg.Retry.RetryableStatus,
		UserAgent:       userAgent,
		TLS:             cfg.TLS,
	}
}

// buildDeps creates one transport per remote feed so API metrics are keyed
// by feed kind.
func buildDeps(ctx context.Context, cfg *config.Config, metrics *topology.InMemoryMetrics, log logger.Logger) (topology.Deps, func(), error) {
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := topology.Deps{Getters: make(map[models.FeedKind]topology.Getter), Metrics: metrics}

	for i := range cfg.Feeds {
		fc := &cfg.Feeds[i]
		if fc.Kind.IsDirectory() {
			continue
		}

		t, err := transport.New(retryConfig(cfg), log.WithComponent("transport"), transport.WithMetrics(string(fc.Kind), metrics))
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to create transport for %s: %w", fc.Kind, err)
		}

		deps.Getters[fc.Kind] = t
	}

	if cfg.Directory != nil && cfg.Directory.URL != "" {
		timeout := time.Duration(cfg.Directory.Timeout)
		if timeout == 0 {
			timeout = time.Duration(cfg.Retry.Timeout)
		}

		client, err := directory.New(directory.Config{
			URL:           cfg.Directory.URL,
			Attempts:      cfg.Retry.Attempts,
			Timeout:       timeout,
			Sleep:         time.Duration(cfg.Retry.Sleep),
			LinearBackoff: cfg.Retry.Linear,
		}, log.WithComponent("directory"))
		if err != nil {
			return deps, cleanup, err
		}

		deps.Directory = client
	}

	store, err := state.NewFileStore(state.Config{
		Dir:           cfg.StateDir,
		Customer:      cfg.Customer,
		Job:           cfg.Job,
		RetentionDays: cfg.RetentionDays,
		LookbackDays:  cfg.LookbackDays,
	}, log.WithComponent("state"))
	if err != nil {
		return deps, cleanup, err
	}

	deps.Store = store

	if p := cfg.Publishers.Avro; p != nil {
		avro, err := publish.NewAvroPublisher(p.Dir, log.WithComponent("avro"))
		if err != nil {
			return deps, cleanup, err
		}

		deps.Publishers = append(deps.Publishers, avro)
	}

	if p := cfg.Publishers.Catalog; p != nil {
		t, err := transport.New(retryConfig(cfg), log.WithComponent("transport"), transport.WithMetrics("catalog", metrics))
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to create catalog transport: %w", err)
		}

		deps.Publishers = append(deps.Publishers,
			publish.NewCatalogPublisher(t, p.URL, p.Token, p.Tenant, log.WithComponent("catalog")))
	}

	if p := cfg.Publishers.NATS; p != nil {
		pub, nc, err := publish.ConnectNATS(ctx, p.URL, p.CredsFile, p.Subject, log.WithComponent("nats"))
		if err != nil {
			return deps, cleanup, err
		}

		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				log.Warn().Err(err).Msg("Failed to drain NATS connection")
			}
		})

		deps.Publishers = append(deps.Publishers, pub)
	}

	return deps, cleanup, nil
}
