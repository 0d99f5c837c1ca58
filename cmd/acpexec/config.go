package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultStartTimeout   = 60 * time.Second
	defaultSessionTimeout = 30 * time.Second
	defaultTurnTimeout    = 10 * time.Minute
	defaultKeepalive      = 15 * time.Second
)

// Config stores runtime settings for acpexec, loaded from a TOML file
// and overridable by flags.
type Config struct {
	Command        []string
	WorkingDir     string
	StartTimeout   time.Duration
	SessionTimeout time.Duration
	TurnTimeout    time.Duration
	Keepalive      time.Duration
}

type fileConfig struct {
	Command        []string `toml:"command"`
	WorkingDir     *string  `toml:"working_dir"`
	StartTimeout   *string  `toml:"start_timeout"`
	SessionTimeout *string  `toml:"session_timeout"`
	TurnTimeout    *string  `toml:"turn_timeout"`
	Keepalive      *string  `toml:"keepalive"`
}

// loadConfig reads the config file at path, if it exists, over the
// defaults. A missing file is not an error; flags still apply on top.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		StartTimeout:   defaultStartTimeout,
		SessionTimeout: defaultSessionTimeout,
		TurnTimeout:    defaultTurnTimeout,
		Keepalive:      defaultKeepalive,
	}

	var fc fileConfig

	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if len(fc.Command) > 0 {
		cfg.Command = fc.Command
	}

	if fc.WorkingDir != nil {
		cfg.WorkingDir = *fc.WorkingDir
	}

	for _, d := range []struct {
		raw  *string
		dst  *time.Duration
		name string
	}{
		{fc.StartTimeout, &cfg.StartTimeout, "start_timeout"},
		{fc.SessionTimeout, &cfg.SessionTimeout, "session_timeout"},
		{fc.TurnTimeout, &cfg.TurnTimeout, "turn_timeout"},
		{fc.Keepalive, &cfg.Keepalive, "keepalive"},
	} {
		if d.raw == nil {
			continue
		}

		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.name, err)
		}

		*d.dst = parsed
	}

	return cfg, nil
}
