package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/wavesoft/marblebar/internal/config"
	"github.com/wavesoft/marblebar/internal/demo"
	"github.com/wavesoft/marblebar/internal/frontend"
	"github.com/wavesoft/marblebar/internal/kernel"
	"github.com/wavesoft/marblebar/internal/monitor"
	"github.com/wavesoft/marblebar/internal/session"
	"github.com/wavesoft/marblebar/internal/ws"
)

const version = "0.0.1"

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to a YAML or JSON config file")
	host := pflag.String("host", "", "Override listen host")
	port := pflag.IntP("port", "p", 0, "Override listen port")
	demoMode := pflag.Bool("demo", false, "Publish the demo view")
	monitorMode := pflag.Bool("monitor", false, "Publish the host metrics view")
	devMode := pflag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	openUI := pflag.Bool("open", false, "Open the UI in the system browser")
	showVersion := pflag.BoolP("version", "v", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("marblebar", version)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("Loaded config from %s", *configPath)
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if pflag.CommandLine.Changed("demo") {
		cfg.Demo.Enabled = *demoMode
	}
	if pflag.CommandLine.Changed("monitor") {
		cfg.Monitor.Enabled = *monitorMode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	k := kernel.New()
	registry := session.NewRegistry(k, session.Options{
		EgressLimit: cfg.Sync.EgressLimit,
		FrameRate:   cfg.Sync.FrameRate,
		FrameBurst:  cfg.Sync.FrameBurst,
	}, cfg.Sync.MaxConnections)

	frontendDir := ""
	if *devMode {
		cwd, _ := os.Getwd()
		frontendDir = filepath.Join(cwd, "internal", "frontend", "static")
	}

	// Embedded frontend handler: when built with -tags embed, serves from binary.
	// Otherwise falls back to serving from the filesystem.
	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			cwd, _ := os.Getwd()
			fallback := filepath.Join(cwd, "internal", "frontend", "static")
			if _, err := os.Stat(fallback); err == nil {
				log.Printf("No embedded frontend, falling back to: %s", fallback)
				embeddedHandler = http.FileServer(http.Dir(fallback))
			}
		}
	}

	server := ws.NewServer(cfg, k, registry, version, frontendDir, *devMode, embeddedHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go registry.Run(ctx, cfg.Sync.PollInterval)

	if cfg.Demo.Enabled {
		log.Println("Starting demo view")
		demo.NewGenerator(k, cfg.Demo.Interval).Start(ctx)
	}
	if cfg.Monitor.Enabled {
		log.Println("Starting host monitor view")
		mon := monitor.New(k, cfg.Monitor.Interval, registry.Len)
		go mon.Start(ctx)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		registry.Close()
		os.Exit(0)
	}()

	if *openUI {
		url := fmt.Sprintf("http://%s/", cfg.Addr())
		if err := openBrowser(url); err != nil {
			log.Printf("Could not open browser: %v", err)
		}
	}

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
