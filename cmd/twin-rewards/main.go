// twin-rewards simulates the pizza rewards Store Backend: the WordPress REST
// routes under /wp-json/pizza-rewards/v1 that the reward catalog talks to.
//
// Integration method: point the catalog's base URL at the twin.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/wondertwin-ai/rewardcatalog/internal/twin/api"
	"github.com/wondertwin-ai/rewardcatalog/internal/twin/store"
	"github.com/wondertwin-ai/rewardcatalog/pkg/admin"
	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "twin-rewards: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := twincore.ParseFlags("twin-rewards", args)
	if err != nil {
		return err
	}

	twin := twincore.New(cfg, nil)
	memStore := store.New()

	// Load seed data if provided
	if cfg.SeedFile != "" {
		if err := memStore.LoadSeedFile(cfg.SeedFile); err != nil {
			return err
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	} else {
		memStore.SeedDefaults()
	}

	// API handlers
	apiHandler := api.NewHandler(memStore, twin.Middleware(), twin, twin.Metrics, twin.Logger)
	apiHandler.Routes(twin.Router)

	// Admin control plane
	adminHandler := admin.NewHandler(resettingState{memStore, apiHandler}, twin.Middleware(), twin)
	adminHandler.Routes(twin.Router)

	twin.Logger.Info("twin-rewards ready",
		"port", cfg.Port,
		"rewards", memStore.Rewards.Len(),
		"stores", memStore.Stores.Len(),
	)
	return twin.Serve(ctx)
}

// resettingState also forgets the per-nonce rate limiters on admin reset.
type resettingState struct {
	*store.MemoryStore
	api *api.Handler
}

func (s resettingState) Reset() error {
	if err := s.MemoryStore.Reset(); err != nil {
		return err
	}
	s.api.ResetLimits()
	return nil
}
