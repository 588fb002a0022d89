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

package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// envString returns the environment variable's value when set, else def —
// the fallback applies before flag.Parse so an explicit flag still wins.
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// South holds every south-process knob, flag-parsed with environment
// fallback exactly the way the teacher's cmd/ entry points default flags.
type South struct {
	ListenAddr      string
	QueueThreshold  int
	QueueTimeout    time.Duration
	StatsInterval   time.Duration
	PerfmonInterval time.Duration
	LogLevel        string
}

// ParseSouth parses os.Args[1:] (via the standard flag.CommandLine) into a
// South config. DB_CONNECTION is read directly by the storage engine and is
// intentionally not duplicated here.
func ParseSouth() South {
	addr := flag.String("http_addr", envString("SOUTH_HTTP_ADDR", ":8118"), "HTTP listen address for /metrics and /healthz")
	threshold := flag.Int("queue_threshold", envInt("QUEUE_THRESHOLD", 500), "Readings buffered before the drain thread wakes early")
	timeout := flag.Duration("queue_timeout", envDuration("QUEUE_TIMEOUT", time.Second), "Maximum time the drain thread waits before waking regardless of queue size")
	statsInterval := flag.Duration("stats_interval", envDuration("STATS_INTERVAL", 5*time.Second), "How often accumulated stats are flushed to storage")
	perfmonInterval := flag.Duration("perfmon_interval", envDuration("PERFMON_INTERVAL", 15*time.Second), "How often performance counters are flushed to storage")
	logLevel := flag.String("log_level", envString("LOG_LEVEL", "info"), "Structured log level")
	flag.Parse()

	return South{
		ListenAddr:      *addr,
		QueueThreshold:  *threshold,
		QueueTimeout:    *timeout,
		StatsInterval:   *statsInterval,
		PerfmonInterval: *perfmonInterval,
		LogLevel:        *logLevel,
	}
}

// North holds every north-process knob.
type North struct {
	ListenAddr    string
	PollInterval  time.Duration
	BatchSize     int
	OMFEndpoint   string
	ServiceName   string
	CursorAdapter string
	RedisAddr     string
	LogLevel      string
}

// ParseNorth parses os.Args[1:] into a North config.
func ParseNorth() North {
	addr := flag.String("http_addr", envString("NORTH_HTTP_ADDR", ":8119"), "HTTP listen address for /metrics and /healthz")
	poll := flag.Duration("poll_interval", envDuration("NORTH_POLL_INTERVAL", time.Second), "How often the scheduler checks for unsent readings")
	batch := flag.Int("batch_size", envInt("NORTH_BATCH_SIZE", 1000), "Maximum readings fetched per poll")
	endpoint := flag.String("omf_endpoint", envString("OMF_ENDPOINT", ""), "OMF/PI collaborator ingress URL")
	service := flag.String("service_name", envString("NORTH_SERVICE_NAME", "north"), "Cursor row / perfmon service name")
	cursorAdapter := flag.String("cursor_adapter", envString("CURSOR_ADAPTER", "postgres"), `Cursor store adapter: "postgres" or "redis"`)
	redisAddr := flag.String("redis_addr", envString("REDIS_ADDR", ""), "Redis address, required when cursor_adapter=redis")
	logLevel := flag.String("log_level", envString("LOG_LEVEL", "info"), "Structured log level")
	flag.Parse()

	return North{
		ListenAddr:    *addr,
		PollInterval:  *poll,
		BatchSize:     *batch,
		OMFEndpoint:   *endpoint,
		ServiceName:   *service,
		CursorAdapter: *cursorAdapter,
		RedisAddr:     *redisAddr,
		LogLevel:      *logLevel,
	}
}
