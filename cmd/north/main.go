// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command north runs the single fetcher+emitter thread that forwards
// persisted readings to an OMF/PI collaborator, tracking progress in a
// crash-safe cursor.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charithmadhuranga/fledge/internal/config"
	"github.com/charithmadhuranga/fledge/internal/cursor"
	"github.com/charithmadhuranga/fledge/internal/errs"
	"github.com/charithmadhuranga/fledge/internal/north"
	"github.com/charithmadhuranga/fledge/internal/obslog"
	"github.com/charithmadhuranga/fledge/internal/omf"
	"github.com/charithmadhuranga/fledge/internal/perfmon"
	"github.com/charithmadhuranga/fledge/internal/storage"
)

func main() {
	cfg := config.ParseNorth()
	log := obslog.New("north", cfg.LogLevel)
	errs.SetDefaultLogger(log)

	if cfg.OMFEndpoint == "" {
		log.Fatal().Msg("omf_endpoint is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := storage.Open(ctx, errs.Default())
	if err != nil {
		log.Fatal().Err(err).Msg("opening storage engine")
	}
	defer engine.Close()

	cursorStore, err := cursor.BuildStore(cfg.CursorAdapter, engine, cursor.Options{RedisAddr: cfg.RedisAddr})
	if err != nil {
		log.Fatal().Err(err).Msg("building cursor store")
	}

	monitor := perfmon.New()
	monitor.SetCollecting(true)
	housekeeper := perfmon.NewHousekeeper(monitor, engine, cfg.ServiceName, 15*time.Second)
	housekeeper.Start(ctx)

	fetcher := north.NewStorageFetcher(engine)
	emitter := omf.New()
	client := &http.Client{Timeout: 10 * time.Second}
	scheduler := north.New(fetcher, emitter, cursorStore, client, log, cfg.ServiceName, cfg.OMFEndpoint, nil, cfg.BatchSize)

	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				n, err := scheduler.RunOnce(ctx)
				monitor.Collect("pollLatencyMs", float64(time.Since(start).Milliseconds()))
				if err != nil {
					log.Error().Err(err).Msg("poll cycle failed")
					continue
				}
				if n > 0 {
					log.Info().Int("count", n).Msg("forwarded readings")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "time": time.Now().UTC()})
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("north listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	housekeeper.Stop()
	cancel()
}
