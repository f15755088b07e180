package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/soloctl/internal/launcher"
	"github.com/danmuck/soloctl/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to launcher config (toml)")
	appName := flag.String("app", "", "application name override")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := launcher.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "soloctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *appName != "" {
		cfg.AppName = *appName
	}
	cfg.Arguments = flag.Args()

	svc, err := launcher.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "soloctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "soloctl: %v\n", err)
		os.Exit(1)
	}
}
