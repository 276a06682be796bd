package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/victornm/teamquiz/internal/config"
	"github.com/victornm/teamquiz/internal/server"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
}

// loadConfig reads the file at CONFIG_PATH, when set, over the defaults.
// TEAMQUIZ_ prefixed environment variables override both, e.g. TEAMQUIZ_HTTP_PORT.
func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	if err := config.Load(os.Getenv("CONFIG_PATH"), &c, config.WithEnvPrefix("TEAMQUIZ")); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
