// Round-trips a proposal page through the Redis cache store.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/stake-plus/dao-proposals/src/api/data"
	"github.com/stake-plus/dao-proposals/src/cache"
	"github.com/stake-plus/dao-proposals/src/shared/gov"
)

func main() {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	ctx := context.Background()
	rdb, err := data.ConnectRedis(ctx, url)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer rdb.Close()

	store := cache.NewRedis(rdb, time.Minute)
	cursor := int64(1609459200)
	key := cache.Key{Mode: gov.ModeOffchain, Space: "storage-test.eth", Order: gov.OrderAsc, Limit: 1, Cursor: &cursor}

	entry := &cache.Entry{
		Page: gov.Page{Proposals: []gov.Proposal{{
			ID: "0xtest", Source: gov.ModeOffchain, Space: "storage-test.eth",
			Title: "Storage round-trip", Created: cursor + 1,
			Choices: []string{"For", "Against"}, Scores: []float64{1, 0},
		}}},
		FetchedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Put(ctx, key, entry); err != nil {
		log.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		log.Fatalf("Get: %v", err)
	}
	if got == nil {
		log.Fatal("Get: entry missing right after Put")
	}

	log.Printf("Key %s", key.String())
	log.Printf("  Redis key: %s", key.Digest())
	log.Printf("  Proposals: %d", len(got.Page.Proposals))
	log.Printf("  Title: %s", got.Page.Proposals[0].Title)
	log.Printf("  Fetched at: %s", got.FetchedAt.Format(time.RFC3339))
	if ttl, err := rdb.TTL(ctx, key.Digest()).Result(); err == nil {
		log.Printf("  TTL: %s", ttl)
	}
	if !got.FetchedAt.Equal(entry.FetchedAt) || got.Page.Proposals[0].ID != "0xtest" {
		log.Fatal("round-trip mismatch")
	}
	_ = rdb.Del(ctx, key.Digest()).Err()
	log.Print("✓ storage round-trip passed")
}
