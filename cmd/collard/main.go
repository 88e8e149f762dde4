package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/strayware/go-collar/internal/config"
	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/osc"
	"github.com/strayware/go-collar/pkg/session"
	"github.com/strayware/go-collar/pkg/shock"
	"github.com/strayware/go-collar/pkg/speech"
	"github.com/strayware/go-collar/pkg/web"
)

func main() {
	configPath := flag.String("config", "collar.yaml", "Path to the YAML config file")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info")
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log.Init(level)
	log.Info("collard starting", "config", *configPath)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	sink := shock.NewClient(cfg.Device.APIURL, cfg.Device.Username, cfg.Device.APIKey)

	sess := session.New(cfg, sink)
	sess.Start(ctx)
	defer sess.Stop()

	server := web.NewServer(cfg.Web.Addr, sess)
	server.StartAsync()
	defer server.Shutdown()

	// Adapters feed the bus until the context is cancelled.
	go func() {
		if err := speech.NewClient(cfg.Speech.URL, sess.Bus()).Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("speech client stopped", "err", err)
			cancel()
		}
	}()

	// Return instead of exiting so the deferred teardown runs.
	receiver := osc.NewReceiver(cfg.OSC.Addr, sess.Bus())
	if err := receiver.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("osc receiver stopped", "err", err)
		cancel()
	}
}
