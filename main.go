package main

import (
	"log"

	"broker-calls/app"
	"broker-calls/config"
)

func main() {
	// Load config from .env file and the environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := application.Start(); err != nil {
		log.Fatal(err)
	}
}
