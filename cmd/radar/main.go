package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/madmonkey48/kh-allert-radar/internal/app"
	"github.com/madmonkey48/kh-allert-radar/internal/clock"
)

// main starts the radar service from one TOML config file.
// Params: CLI flag --config-file.
// Returns: process exit code by startup/run result.
func main() {
	configFile := flag.String("config-file", "", "path to one TOML config file")
	flag.Parse()

	if *configFile == "" {
		_, _ = fmt.Fprintln(os.Stderr, "--config-file is required")
		os.Exit(2)
	}

	service, err := app.NewService(*configFile, clock.RealClock{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service init failed:", err.Error())
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service run failed:", err.Error())
		os.Exit(1)
	}
}
