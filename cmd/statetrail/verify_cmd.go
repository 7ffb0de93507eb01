package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/statetrail/statetrail/internal/log"
	"github.com/statetrail/statetrail/internal/store"
)

func runVerify(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	mode := fs.String("mode", "quick", "integrity check mode: quick or full")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	logger := log.WithComponent("verify")

	// File-level structural check first; a corrupt file makes the
	// invariant sweep meaningless.
	problems, err := store.VerifyIntegrity(cfg.Database.Path, *mode)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldPath, cfg.Database.Path).Msg("integrity check failed to run")
		return 1
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "integrity: %s\n", p)
		}
		return 1
	}

	st, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		logger.Error().Err(err).Msg("open store")
		return 1
	}
	defer func() { _ = st.Close() }()

	findings, err := st.SweepInvariants(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("invariant sweep failed")
		return 1
	}
	if len(findings) > 0 {
		for _, f := range findings {
			fmt.Fprintf(os.Stderr, "invariant: %s\n", f)
		}
		return 1
	}

	fmt.Println("ok")
	return 0
}
