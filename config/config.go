// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package config loads the settings of a did-delegator client: which network
// to talk to, how long to wait for confirmations, how fast to call the relay
// and how to log.
//
// Settings start from defaults, are merged with an optional YAML file and are
// finally overridden from DID_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/aumos-ai/did-delegator/delegator"
	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/types"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvNetwork      = "DID_NETWORK"
	EnvDelegatorURL = "DID_DELEGATOR_URL"
	EnvNodeURL      = "DID_NODE_URL"
	EnvResolverURL  = "DID_RESOLVER_URL"
	EnvDIDPrefix    = "DID_PREFIX"
	EnvAPIKey       = "DID_API_KEY"
	EnvLogLevel     = "DID_LOG_LEVEL"
)

// Settings is the complete client configuration.
type Settings struct {
	Network  Network        `yaml:"network"`
	Confirm  ConfirmConfig  `yaml:"confirm"`
	Relay    RelayConfig    `yaml:"relay"`
	Resolver ResolverConfig `yaml:"resolver"`
	Log      LogConfig      `yaml:"log"`
}

// ConfirmConfig bounds receipt polling.
type ConfirmConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RelayConfig limits calls to the relay.
type RelayConfig struct {
	// RPS is the sustained call rate. Zero disables limiting.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// Timeout applies to every HTTP request to the relay and the node.
	Timeout time.Duration `yaml:"timeout"`
}

// ResolverConfig configures DID resolution.
type ResolverConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		Network:  Network{Name: Testnet},
		Confirm:  ConfirmConfig{Interval: time.Second, MaxInterval: 5 * time.Second, Timeout: time.Minute},
		Relay:    RelayConfig{Timeout: 30 * time.Second},
		Resolver: ResolverConfig{Timeout: 10 * time.Second, MaxResponseBytes: 1 << 20},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds Settings from defaults, the YAML file at path (skipped when path
// is empty) and the environment, then resolves and validates the network.
func Load(path string) (*Settings, error) {
	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.WrapError(types.KindConfig, "config: read", err)
		}
		var parsed Settings
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, types.WrapError(types.KindConfig, "config: parse "+path, err)
		}
		Merge(&s, parsed)
	}
	ApplyEnvOverrides(&s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Merge copies every non-zero field of src over dst.
func Merge(dst *Settings, src Settings) {
	n := src.Network
	if n.Name != "" && n.Name != dst.Network.Name {
		dst.Network = Network{Name: n.Name}
	}
	setString(&dst.Network.DelegatorURL, n.DelegatorURL)
	setString(&dst.Network.NodeURL, n.NodeURL)
	setString(&dst.Network.ResolverURL, n.ResolverURL)
	setString(&dst.Network.DIDPrefix, n.DIDPrefix)
	setString(&dst.Network.APIKey, n.APIKey)
	if n.PinRegistry {
		dst.Network.PinRegistry = true
	}
	if n.Registry != nil {
		dst.Network.Registry = n.Registry.Clone()
	}

	setDuration(&dst.Confirm.Interval, src.Confirm.Interval)
	setDuration(&dst.Confirm.MaxInterval, src.Confirm.MaxInterval)
	setDuration(&dst.Confirm.Timeout, src.Confirm.Timeout)

	if src.Relay.RPS != 0 {
		dst.Relay.RPS = src.Relay.RPS
	}
	if src.Relay.Burst != 0 {
		dst.Relay.Burst = src.Relay.Burst
	}
	setDuration(&dst.Relay.Timeout, src.Relay.Timeout)

	setDuration(&dst.Resolver.Timeout, src.Resolver.Timeout)
	if src.Resolver.MaxResponseBytes != 0 {
		dst.Resolver.MaxResponseBytes = src.Resolver.MaxResponseBytes
	}

	setString(&dst.Log.Level, src.Log.Level)
	setString(&dst.Log.Format, src.Log.Format)
}

// ApplyEnvOverrides applies the DID_* environment variables. Choosing a
// different network through DID_NETWORK drops endpoints set for the old one.
func ApplyEnvOverrides(s *Settings) {
	if name := env(EnvNetwork); name != "" && name != s.Network.Name {
		s.Network = Network{Name: name}
	}
	setString(&s.Network.DelegatorURL, env(EnvDelegatorURL))
	setString(&s.Network.NodeURL, env(EnvNodeURL))
	setString(&s.Network.ResolverURL, env(EnvResolverURL))
	setString(&s.Network.DIDPrefix, env(EnvDIDPrefix))
	setString(&s.Network.APIKey, env(EnvAPIKey))
	setString(&s.Log.Level, env(EnvLogLevel))
}

// Validate resolves the network in place and checks the remaining fields.
func (s *Settings) Validate() error {
	n, err := s.Network.Resolve()
	if err != nil {
		return err
	}
	s.Network = n
	switch {
	case s.Confirm.Interval <= 0 || s.Confirm.Timeout <= 0:
		return types.NewError(types.KindConfig, "config: confirm", "interval and timeout must be positive")
	case s.Confirm.MaxInterval < s.Confirm.Interval:
		return types.NewError(types.KindConfig, "config: confirm", "max_interval is shorter than interval")
	case s.Relay.RPS < 0 || s.Relay.Burst < 0:
		return types.NewError(types.KindConfig, "config: relay", "rps and burst must not be negative")
	}
	if _, err := parseLevel(s.Log.Level); err != nil {
		return types.WrapError(types.KindConfig, "config: log", err)
	}
	if f := strings.ToLower(s.Log.Format); f != "json" && f != "text" {
		return types.NewError(types.KindConfig, "config: log", fmt.Sprintf("unknown format %q", s.Log.Format))
	}
	return nil
}

// Endpoints returns the relay and node endpoints of the configured network.
func (s *Settings) Endpoints() delegator.Endpoints {
	return delegator.Endpoints{
		DelegatorURL: s.Network.DelegatorURL,
		NodeURL:      s.Network.NodeURL,
		APIKey:       s.Network.APIKey,
		HTTPClient:   &http.Client{Timeout: s.Relay.Timeout},
	}
}

// DelegatorOptions returns the delegator.Client options. metrics may be nil.
func (s *Settings) DelegatorOptions(logger *slog.Logger, metrics *delegator.Metrics) delegator.Options {
	return delegator.Options{
		DIDPrefix: s.Network.DIDPrefix,
		Registry:  s.Network.PinnedRegistry(),
		Confirm: delegator.ConfirmOptions{
			Interval:    s.Confirm.Interval,
			MaxInterval: s.Confirm.MaxInterval,
			Timeout:     s.Confirm.Timeout,
		},
		RateLimit: rate.Limit(s.Relay.RPS),
		Burst:     s.Relay.Burst,
		Metrics:   metrics,
		Logger:    logger,
	}
}

// ResolverOptions returns the options of an identity.HTTPResolver for the configured network.
func (s *Settings) ResolverOptions(logger *slog.Logger) identity.ResolverOptions {
	return identity.ResolverOptions{
		BaseURL:          s.Network.ResolverURL,
		HTTPClient:       &http.Client{Timeout: s.Resolver.Timeout},
		MaxResponseBytes: s.Resolver.MaxResponseBytes,
		Logger:           logger,
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
