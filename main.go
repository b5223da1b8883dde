package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"posdash/cmd"
	"posdash/internal/config"
	"posdash/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// The logger is configured even when the rest of the configuration is
	// incomplete, so commands can still report what is missing.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting posdash")

	cmd.Execute()

	log.Debug().Msg("posdash finished")
	os.Exit(0)
}
