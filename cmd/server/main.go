package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitewrap/backend/internal/infrastructure/config"
	"github.com/sitewrap/backend/internal/infrastructure/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	descriptor := flag.String("descriptor", "", "Wrapper descriptor path (overrides WRAPPER_DESCRIPTOR)")
	home := flag.String("home", "", "Home address when no descriptor is given (overrides WRAPPER_HOME)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *descriptor != "" {
		cfg.Wrapper.DescriptorPath = *descriptor
	}
	if *home != "" {
		cfg.Wrapper.HomeAddress = *home
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
