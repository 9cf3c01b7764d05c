package app

import (
	"strings"
	"time"

	"eduadmin/internal/config"
	"eduadmin/internal/jobs"
	"eduadmin/internal/ops"
	"eduadmin/internal/store"
	logx "eduadmin/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		BufferSize: cfg.Logging.BufferSize,
	}
}

func mapStoreConfig(cfg *config.Config) (store.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return store.Config{}, err
	}
	out := store.Config{Driver: driver, Path: strings.TrimSpace(sc.Path)}
	if driver == "sqlite" || driver == "sqlite3" {
		out.BusyTimeout = busy
	}
	return out, nil
}

func mapJobsConfig(cfg *config.Config) (jobs.Config, error) {
	// "0s" disables the per-run timeout; only an empty value takes the default.
	timeout := 5 * time.Minute
	if strings.TrimSpace(cfg.Jobs.Timeout) != "" {
		var err error
		if timeout, err = config.ParseDurationField("jobs.timeout", cfg.Jobs.Timeout); err != nil {
			return jobs.Config{}, err
		}
	}
	tz := strings.TrimSpace(cfg.Jobs.Timezone)
	if tz == "" {
		tz = strings.TrimSpace(cfg.Calendar.Timezone)
	}
	return jobs.Config{
		Enabled:  cfg.Jobs.Enabled,
		Timezone: tz,
		Timeout:  timeout,
	}, nil
}

func mapOpsConfig(cfg *config.Config) (ops.Config, error) {
	read, err := config.ParseDurationOrDefault("ops.read_timeout", cfg.Ops.ReadTimeout, 10*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("ops.idle_timeout", cfg.Ops.IdleTimeout, 60*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	// Profiles stream for up to 30s by default.
	write := time.Duration(0)
	if !cfg.Ops.Pprof {
		write = 30 * time.Second
	}
	return ops.Config{
		Enabled:       cfg.Ops.Enabled,
		Addr:          cfg.Ops.Addr,
		Token:         cfg.Ops.Token,
		AllowInsecure: cfg.Ops.AllowInsecure,
		Pprof:         cfg.Ops.Pprof,
		RatePerSec:    cfg.Ops.RatePerSec,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}
