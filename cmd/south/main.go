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

// Command south runs the ingest queue, filter pipeline, stats flusher and
// performance-monitor housekeeper that together form the south-side
// acquisition service. South-plugin producers and the concrete filter
// plugins are external collaborators, out of scope for this binary; it
// wires the components that receive readings from them.
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
	"github.com/charithmadhuranga/fledge/internal/errs"
	"github.com/charithmadhuranga/fledge/internal/ingest"
	"github.com/charithmadhuranga/fledge/internal/obslog"
	"github.com/charithmadhuranga/fledge/internal/perfmon"
	"github.com/charithmadhuranga/fledge/internal/storage"
)

func main() {
	cfg := config.ParseSouth()
	log := obslog.New("south", cfg.LogLevel)
	errs.SetDefaultLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := storage.Open(ctx, errs.Default())
	if err != nil {
		log.Fatal().Err(err).Msg("opening storage engine")
	}
	defer engine.Close()

	stats := ingest.NewStats()
	queue := ingest.NewQueue(engine, stats, cfg.QueueThreshold, cfg.QueueTimeout)
	statsFlusher := ingest.NewStatsFlusher(stats, engine, cfg.StatsInterval)

	monitor := perfmon.New()
	monitor.SetCollecting(true)
	housekeeper := perfmon.NewHousekeeper(monitor, engine, "south", cfg.PerfmonInterval)

	go queue.Run(ctx)
	statsFlusher.Start(ctx)
	housekeeper.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          true,
			"queueLength": queue.QueueLength(),
			"time":        time.Now().UTC(),
		})
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("south listening")
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

	queue.Shutdown()
	statsFlusher.Stop()
	housekeeper.Stop()
	cancel()
}
