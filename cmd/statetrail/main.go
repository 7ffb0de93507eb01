// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/statetrail/statetrail/internal/config"
	stlog "github.com/statetrail/statetrail/internal/log"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `statetrail - temporal state-history tracking store

Usage:
  statetrail report -user <id> [-from RFC3339] [-to RFC3339] [-out file]
  statetrail verify [-mode quick|full]

Global flags:
  -config path   config file (YAML); defaults merged with STATETRAIL_* env
  -version       print version and exit
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if os.Args[1] == "-version" || os.Args[1] == "--version" {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "report":
		code = runReport(ctx, os.Args[2:])
	case "verify":
		code = runVerify(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}

// loadConfig resolves the config for a subcommand and configures logging.
func loadConfig(configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	stlog.Configure(stlog.Config{
		Level:   cfg.LogLevel,
		Service: "statetrail",
	})
	base := stlog.Base()
	base.Debug().
		Str(stlog.FieldPath, cfg.Database.Path).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")
	return cfg, nil
}
