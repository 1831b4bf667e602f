package main

import (
	"log"

	"github.com/rawblock/rete-engine/internal/api"
	"github.com/rawblock/rete-engine/internal/config"
	"github.com/rawblock/rete-engine/internal/diagnostics"
	"github.com/rawblock/rete-engine/internal/engine"
)

func main() {
	log.Println("Starting rete-engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: failed to load configuration: %v", err)
	}

	// Websocket hub fans out diagnostics events and action side effects to
	// connected dashboard clients.
	wsHub := api.NewHub()
	go wsHub.Run()

	diag := diagnostics.New()
	diag.AddEventHook(api.NewWebSocketEventHook(wsHub))

	eng := engine.New(engine.Config{
		ExpectedFacts:     uint(cfg.Resources.MaxFacts),
		CascadeDepthLimit: int(cfg.Resources.CascadeDepthLimit),
		BetaHighWaterMark: 0,
	}, api.NewWebSocketSink(wsHub), diag)

	r := api.SetupRouter(eng, wsHub, cfg)

	log.Printf("Engine %s (%s) listening on %s", cfg.Service.ServiceName, cfg.Service.Environment, cfg.Service.HTTPAddress)
	if err := r.Run(cfg.Service.HTTPAddress); err != nil {
		log.Fatalf("FATAL: server failed: %v", err)
	}
}
