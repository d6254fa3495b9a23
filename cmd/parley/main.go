// Parley negotiation runner: loads configuration, assembles the engine,
// drives one negotiation from the command line, and streams its events to
// stdout as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/parley-ai/parley/pkg/channel"
	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/encoding"
	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/session"
	"github.com/parley-ai/parley/pkg/skill"
	"github.com/parley-ai/parley/pkg/version"
)

// centralProviderID is the llm-providers.yaml entry backing the formulation,
// coordinator, and sub-negotiation skills.
const centralProviderID = "central"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func logLevel() slog.Level {
	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	requester := flag.String("requester", "cli", "Requester identity")
	demand := flag.String("demand", "", "Demand text (required)")
	channelKind := flag.String("channel", "default",
		"Agent channel variant: default (central LLM, per-agent personas) or external (per-agent endpoints)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})))

	if *demand == "" {
		slog.Error("No demand given; pass -demand")
		os.Exit(1)
	}

	// Load .env from the config directory before anything reads key envs.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	ctx := context.Background()
	slog.Info("Starting negotiation engine", "version", version.Full())

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Central completion client
	centralCfg, err := cfg.LLMProviders.Get(centralProviderID)
	if err != nil {
		slog.Error("No central LLM provider configured", "provider_id", centralProviderID, "error", err)
		os.Exit(1)
	}
	centralClient, err := llm.NewAnyLLMClient(centralCfg)
	if err != nil {
		slog.Error("Failed to create central LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("Central LLM client ready", "provider", centralCfg.Provider, "model", centralCfg.Model)

	// 3. Agent channel
	var agentChannel channel.Channel
	switch *channelKind {
	case "default":
		agentChannel = channel.NewDefaultChannel(centralClient, cfg.AgentRegistry)
	case "external":
		agentChannel = channel.NewExternalChannel(cfg.AgentRegistry)
	default:
		slog.Error("Unknown channel variant", "channel", *channelKind)
		os.Exit(1)
	}

	// 4. Encoder and matcher
	encoder, err := encoding.NewOpenAIEncoder(cfg.Embedding, cfg.Settings.EmbeddingDimension)
	if err != nil {
		slog.Error("Failed to create encoder", "error", err)
		os.Exit(1)
	}
	matcher := resonance.NewMatcher(encoder, cfg.Settings.SelectionTopK, cfg.Settings.SelectionThreshold)

	// 5. Event bus, engine, session manager
	bus := events.NewBus(events.DefaultBufferSize)
	eng := engine.New(engine.Deps{
		Settings:      cfg.Settings,
		Registry:      cfg.AgentRegistry,
		Channel:       agentChannel,
		Matcher:       matcher,
		Bus:           bus,
		Formulator:    skill.NewFormulation(centralClient),
		Offers:        skill.NewOfferSkill(agentChannel),
		Coordinator:   skill.NewCoordinatorSkill(centralClient),
		SubNegotiator: skill.NewSubNegotiationSkill(centralClient),
	})
	manager := session.NewManager(eng)

	// 6. Create the session, stream its events, run it
	snap := manager.Create(*requester, *demand)
	sub := bus.Subscribe(snap.ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("Cancelling negotiation", "signal", sig)
		if err := manager.Cancel(snap.ID); err != nil {
			slog.Error("Cancel failed", "error", err)
		}
	}()

	printer := make(chan struct{})
	go func() {
		defer close(printer)
		enc := json.NewEncoder(os.Stdout)
		for env := range sub.Events() {
			if err := enc.Encode(env); err != nil {
				slog.Error("Failed to write event", "error", err)
			}
		}
	}()

	final, err := manager.Run(ctx, snap.ID)
	if err != nil {
		slog.Error("Failed to run negotiation", "error", err)
		os.Exit(1)
	}
	<-printer

	if final.Plan != nil {
		out, _ := json.MarshalIndent(final.Plan, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
	}
	if final.Outcome != "success" {
		slog.Error("Negotiation did not succeed", "outcome", final.Outcome, "detail", final.ErrorDetail)
		os.Exit(1)
	}
}
