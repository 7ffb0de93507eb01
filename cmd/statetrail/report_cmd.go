package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
	"github.com/statetrail/statetrail/internal/log"
	"github.com/statetrail/statetrail/internal/query"
	"github.com/statetrail/statetrail/internal/store"
)

// Report is the per-user summary emitted by the report command.
type Report struct {
	UserID       string              `json:"userId"`
	GeneratedAt  time.Time           `json:"generatedAt"`
	WindowFrom   time.Time           `json:"windowFrom"`
	WindowTo     time.Time           `json:"windowTo"`
	CurrentName  *discord.NameState  `json:"currentName,omitempty"`
	Presence     map[string]float64  `json:"presenceSeconds"`
	VoiceSeconds float64             `json:"voiceSeconds"`
	Activities   map[string]float64  `json:"activitySeconds"`
	Messages     int64               `json:"messages"`
	CustomStatus *store.CustomStatus `json:"customStatus,omitempty"`
}

func runReport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	userID := fs.String("user", "", "user id to report on (required)")
	fromStr := fs.String("from", "", "window start, RFC3339 (default: 7 days ago)")
	toStr := fs.String("to", "", "window end, RFC3339 (default: now)")
	outPath := fs.String("out", "", "write JSON report to file atomically (default: stdout)")
	_ = fs.Parse(args)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "report: -user is required")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		return 1
	}
	logger := log.WithComponent("report")

	now := time.Now().UTC()
	from := now.Add(-7 * 24 * time.Hour)
	to := now
	if *fromStr != "" {
		if from, err = time.Parse(time.RFC3339, *fromStr); err != nil {
			fmt.Fprintf(os.Stderr, "report: invalid -from: %v\n", err)
			return 2
		}
	}
	if *toStr != "" {
		if to, err = time.Parse(time.RFC3339, *toStr); err != nil {
			fmt.Fprintf(os.Stderr, "report: invalid -to: %v\n", err)
			return 2
		}
	}
	if !to.After(from) {
		fmt.Fprintln(os.Stderr, "report: -to must be after -from")
		return 2
	}

	st, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldPath, cfg.Database.Path).Msg("open store")
		return 1
	}
	defer func() { _ = st.Close() }()

	rep, err := buildReport(ctx, query.NewService(st), st, *userID, from, to, now)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldUserID, *userID).Msg("build report")
		return 1
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("encode report")
		return 1
	}
	data = append(data, '\n')

	if *outPath == "" {
		_, _ = os.Stdout.Write(data)
		return 0
	}
	if err := renameio.WriteFile(*outPath, data, 0o644); err != nil {
		logger.Error().Err(err).Str(log.FieldPath, *outPath).Msg("write report")
		return 1
	}
	logger.Info().Str(log.FieldPath, *outPath).Str(log.FieldUserID, *userID).Msg("report written")
	return 0
}

func buildReport(ctx context.Context, q *query.Service, st *store.Store, userID string, from, to, now time.Time) (*Report, error) {
	rep := &Report{
		UserID:      userID,
		GeneratedAt: now,
		WindowFrom:  from,
		WindowTo:    to,
		Presence:    make(map[string]float64),
		Activities:  make(map[string]float64),
	}

	name, err := q.CurrentName(ctx, userID)
	if err != nil {
		return nil, err
	}
	rep.CurrentName = name

	presence, err := q.PresenceSummary(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	for status, d := range presence {
		rep.Presence[string(status)] = d.Seconds()
	}

	voice, err := q.VoiceTime(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	rep.VoiceSeconds = voice.Seconds()

	for _, typ := range []discord.ActivityType{
		discord.ActivityCompeting, discord.ActivityCustom, discord.ActivityListening,
		discord.ActivityPlaying, discord.ActivityStreaming, discord.ActivityWatching,
	} {
		d, err := q.DurationIn(ctx, userID, interval.ActivityDomain(string(typ)), from, to, nil)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			rep.Activities[string(typ)] = d.Seconds()
		}
	}

	messages, err := st.CountMessages(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	rep.Messages = messages

	status, err := st.LatestCustomStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	rep.CustomStatus = status

	return rep, nil
}
