package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/GoStakeVault/stakegate/internal/config"
	"github.com/GoStakeVault/stakegate/internal/repository"
)

// Dumps the persisted ledger snapshot: tier table, stake records, allow-list
// and withdrawn flags. Read-only; safe to run against a live database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := repository.NewPostgresSnapshotRepo(db).Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	if snap == nil {
		fmt.Println("No snapshot found")
		return
	}

	fmt.Println("--- Tiers ---")
	tierIDs := make([]uint32, 0, len(snap.Tiers))
	for id := range snap.Tiers {
		tierIDs = append(tierIDs, id)
	}
	sort.Slice(tierIDs, func(i, j int) bool { return tierIDs[i] < tierIDs[j] })
	for _, id := range tierIDs {
		tier := snap.Tiers[id]
		fmt.Printf("Tier %d: rate=%dbps lock=%ds\n", id, tier.RewardRateBps, tier.LockDurationSeconds)
	}

	fmt.Println("\n--- Stake Records ---")
	for _, entry := range snap.Records {
		rec := entry.Record
		fmt.Printf("%s tier=%d staked=%s reward=%s release=%d withdrawn=%v\n",
			entry.Account, entry.TierID, rec.StakedAmount, rec.EarnedReward, rec.ReleaseTime, rec.Withdrawn)
	}

	fmt.Println("\n--- Allow List ---")
	for account, status := range snap.AllowList {
		fmt.Printf("%s: %v\n", account, status)
	}

	fmt.Println("\n--- Withdrawn Flags ---")
	for account, flag := range snap.Withdrawn {
		fmt.Printf("%s: %v\n", account, flag)
	}
}
