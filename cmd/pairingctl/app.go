// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/sage-x-project/pairing/config"
	"github.com/sage-x-project/pairing/internal/logger"
	"github.com/sage-x-project/pairing/pairing"
	"github.com/sage-x-project/pairing/relay"
)

// loadConfig reads the config file named by --config, falling back to
// built-in defaults when none was given.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return &config.Config{
			Relay:   &config.RelayConfig{URL: "ws://127.0.0.1:9091"},
			Pairing: &config.PairingConfig{Protocol: "pairing", Version: 2, ProposalExpiry: pairing.DefaultTTL},
			Logging: &config.LoggingConfig{Level: "info"},
			Metrics: &config.MetricsConfig{Addr: ":9090", Path: "/metrics"},
		}, nil
	}
	return config.LoadFromFile(configPath)
}

// dial opens a relay connection and a Controller bound to it, per cfg.
func dial(cfg *config.Config) (*pairing.Controller, relay.Client, error) {
	if cfg.Relay == nil || cfg.Relay.URL == "" {
		return nil, nil, fmt.Errorf("pairingctl: relay.url is required")
	}

	client, err := relay.DialWS(cfg.Relay.URL, cfg.Relay.DialTimeout)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewDefaultLogger()
	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "debug":
			log.SetLevel(logger.DebugLevel)
		case "warn":
			log.SetLevel(logger.WarnLevel)
		case "error":
			log.SetLevel(logger.ErrorLevel)
		default:
			log.SetLevel(logger.InfoLevel)
		}
	}

	ctrl, err := pairing.New(pairing.Config{
		Relay:       client,
		Protocol:    protocolOr(cfg, "pairing"),
		ProposalTTL: proposalTTLOr(cfg),
		Logger:      log,
		Events:      printingEvents{},
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return ctrl, client, nil
}

func protocolOr(cfg *config.Config, fallback string) string {
	if cfg.Pairing != nil && cfg.Pairing.Protocol != "" {
		return cfg.Pairing.Protocol
	}
	return fallback
}

func proposalTTLOr(cfg *config.Config) time.Duration {
	if cfg.Pairing != nil && cfg.Pairing.ProposalExpiry != 0 {
		return cfg.Pairing.ProposalExpiry
	}
	return pairing.DefaultTTL
}
