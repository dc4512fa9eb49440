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

	log.Println("starting emg-monitor console (MQTT subscriber)")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
