package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"imufusion/internal/config"
	"imufusion/internal/web"
)

func main() {
	var configPath string
	var summarizePath string
	flag.StringVar(&configPath, "config", "./imufusion.yaml", "Path to YAML config")
	flag.StringVar(&summarizePath, "summarize", "", "Print a summary of a recorded sample log and exit")
	flag.Parse()

	if summarizePath != "" {
		// Filter tuning comes from the config when present, defaults otherwise.
		cfg, err := config.Load(configPath)
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = config.Parse(nil)
		}
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		if err := printLogSummary(os.Stdout, summarizePath, cfg.Fusion); err != nil {
			log.Fatalf("summarize failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("imufusion starting: filter=%s interval=%s source=%s",
		cfg.Fusion.Filter, cfg.Fusion.SampleInterval, cfg.IMU.Source)

	rt, err := newRuntime(cfg, configPath, logs)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer rt.Close()

	if err := rt.Run(ctx); err != nil {
		log.Printf("imufusion stopped: %v", err)
		return
	}
	log.Printf("imufusion stopping")
}
