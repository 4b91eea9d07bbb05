package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iredox10/minbar/internal/app"
	"github.com/iredox10/minbar/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "minbar: %v\n", err)
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minbar: %v\n", err)
		os.Exit(1)
	}
	defer application.Shutdown()

	// Playback is driven by OS media controls and the restored session;
	// run until interrupted.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}
