// Package config holds the process-wide environment configuration and
// the runtime variable registry the GETCFG/SETCFG admin handlers read
// and mutate, built on github.com/caarlos0/env/v11 for env-driven
// startup flags.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process' env-sourced configuration: request size cap,
// queue/run-time budgets, statsd target, plus the server's identity
// labels used by STATS/Prometheus.
type Config struct {
	ListenAddr       string        `env:"GRIDD_LISTEN_ADDR" envDefault:":6000"`
	MaxRequestSize   int64         `env:"GRIDD_MAX_REQUEST_SIZE" envDefault:"16777216"`
	MaxQueueDelay    time.Duration `env:"GRIDD_MAX_QUEUE_DELAY" envDefault:"5s"`
	ServerMaxRunTime time.Duration `env:"GRIDD_SERVER_MAX_RUN_TIME" envDefault:"30s"`
	PerfdataAlways   bool          `env:"GRIDD_PERFDATA_ALWAYS" envDefault:"false"`
	IdleTimeout      time.Duration `env:"GRIDD_IDLE_TIMEOUT" envDefault:"5m"`

	StatsdHost string `env:"GRIDD_STATSD_HOST" envDefault:""`
	StatsdPort int    `env:"GRIDD_STATSD_PORT" envDefault:"8125"`

	ServiceID string `env:"GRIDD_SERVICE_ID" envDefault:""`
	Volume    string `env:"GRIDD_VOLUME" envDefault:""`
	Namespace string `env:"GRIDD_NAMESPACE" envDefault:""`

	ForceVersioning bool   `env:"GRIDD_FORCE_VERSIONING" envDefault:"false"`
	UserAgent       string `env:"GRIDD_USER_AGENT" envDefault:"gridd"`
	Region          string `env:"GRIDD_REGION" envDefault:""`
}

// Load parses Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
