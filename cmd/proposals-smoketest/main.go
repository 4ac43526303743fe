package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/stake-plus/dao-proposals/src/shared/gov"
	"github.com/stake-plus/dao-proposals/src/snapshot"
	"github.com/stake-plus/dao-proposals/src/tally"
)

var (
	sourcesFlag  = flag.String("sources", "offchain", "Comma-separated sources: offchain, onchain or all")
	spaceFlag    = flag.String("space", "ens.eth", "Snapshot space id")
	slugFlag     = flag.String("org", "ens", "Tally organization slug for onchain")
	cursorFlag   = flag.Int64("cursor", -1, "Creation-time cursor in unix seconds (-1 = none)")
	orderFlag    = flag.String("order", "desc", "asc|desc")
	limitFlag    = flag.Int("limit", 5, "Proposals per source")
	timeoutFlag  = flag.Duration("timeout", 45*time.Second, "Per-source timeout")
	attemptsFlag = flag.Int("attempts", 2, "Retry attempts per upstream call")
	maxLenFlag   = flag.Int("max-bytes", 120, "Maximum bytes of each title to print (0=unlimited)")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	sources := resolveSources(*sourcesFlag)
	if len(sources) == 0 {
		log.Fatal("no sources specified")
	}
	order, ok := gov.ParseOrder(*orderFlag)
	if !ok {
		log.Fatalf("invalid order %q", *orderFlag)
	}
	q := gov.PageQuery{Limit: *limitFlag, Order: order}
	if *cursorFlag >= 0 {
		q.Cursor = cursorFlag
	}

	failed := false
	for _, source := range sources {
		if err := runSource(source, q); err != nil {
			log.Printf("[%s] ERROR: %v", source, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

type fetcher interface {
	FetchPage(ctx context.Context, identifier string, q gov.PageQuery) (gov.Batch, error)
}

func runSource(source gov.Mode, q gov.PageQuery) error {
	var (
		client     fetcher
		identifier string
	)
	switch source {
	case gov.ModeOnchain:
		client = tally.NewClient(tally.Config{
			Endpoint:      os.Getenv("TALLY_URL"),
			APIKey:        os.Getenv("TALLY_API_KEY"),
			RetryAttempts: *attemptsFlag,
			RetryDelay:    time.Second,
		}, nil)
		identifier = *slugFlag
	default:
		client = snapshot.NewClient(snapshot.Config{
			Endpoint:      os.Getenv("SNAPSHOT_URL"),
			APIKey:        os.Getenv("SNAPSHOT_API_KEY"),
			RetryAttempts: *attemptsFlag,
			RetryDelay:    time.Second,
		}, nil)
		identifier = *spaceFlag
	}

	fmt.Printf("=== %s (%s) ===\n", source, identifier)
	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	batch, err := client.FetchPage(ctx, identifier, q)
	if err != nil {
		return err
	}
	fmt.Printf("%d proposals in %s (more: %t)\n", len(batch.Proposals), time.Since(start).Round(time.Millisecond), batch.More)
	for _, p := range batch.Proposals {
		fmt.Printf("  %s  %-8s %s\n", time.Unix(p.Created, 0).UTC().Format(time.RFC3339), p.State, truncate(p.Title, *maxLenFlag))
	}
	return nil
}

func resolveSources(raw string) []gov.Mode {
	if strings.TrimSpace(raw) == "all" {
		return []gov.Mode{gov.ModeOffchain, gov.ModeOnchain}
	}
	var out []gov.Mode
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(part) {
		case "offchain", "snapshot":
			out = append(out, gov.ModeOffchain)
		case "onchain", "tally":
			out = append(out, gov.ModeOnchain)
		case "":
		default:
			log.Printf("unknown source %q ignored", part)
		}
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
