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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"crowdfund-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	durations := make(map[string]time.Duration)
	defaults := []struct {
		key   string
		value time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second},
		{"DB_PING_TIMEOUT", 5 * time.Second},
		{"DB_BUSY_TIMEOUT", 5 * time.Second},
		{"HTTP_READ_TIMEOUT", 15 * time.Second},
		{"HTTP_WRITE_TIMEOUT", 30 * time.Second},
		{"OUTBOX_POLL_INTERVAL", 5 * time.Second},
		{"NOTIFY_TIMEOUT", 10 * time.Second},
	}
	for _, d := range defaults {
		value, err := getEnvDuration(d.key, d.value)
		if err != nil {
			return nil, err
		}
		durations[d.key] = value
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "crowdfund.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
			ConnMaxIdleTime: durations["DB_CONN_MAX_IDLE_TIME"],
			PingTimeout:     durations["DB_PING_TIMEOUT"],
			BusyTimeout:     durations["DB_BUSY_TIMEOUT"],
		},
		Server: models.ServerConfig{
			Addr:           getEnvString("HTTP_ADDR", ":8080"),
			ReadTimeout:    durations["HTTP_READ_TIMEOUT"],
			WriteTimeout:   durations["HTTP_WRITE_TIMEOUT"],
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 10),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Outbox: models.OutboxConfig{
			PollInterval: durations["OUTBOX_POLL_INTERVAL"],
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts:  getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),
		},
		Notify: models.NotifyConfig{
			WebhookURL: getEnvString("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    durations["NOTIFY_TIMEOUT"],
		},
		Fixtures: getEnvString("FIXTURES_FILE", "fixtures.yaml"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
