// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/emg_monitor/internal/app"
	"github.com/relabs-tech/emg_monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "./emg_config.toml", "path to configuration file")
	flag.Parse()

	log.Println("starting emg-monitor web server (MQTT subscriber)")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: live data requires the signal producer to be running (./emg_producer)")

	if err := app.RunWeb(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
