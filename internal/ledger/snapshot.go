package ledger

import "context"

// Snapshotter is the persistence collaborator. The ledger owns its state in
// memory; the store only receives full snapshots after successful mutations
// and supplies one at startup.
type Snapshotter interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// RecordEntry pairs a stake record with its key for serialization.
type RecordEntry struct {
	Account string      `json:"account"`
	TierID  uint32      `json:"tier_id"`
	Record  StakeRecord `json:"record"`
}

// Snapshot is a consistent copy of the full ledger state.
type Snapshot struct {
	Tiers       map[uint32]Tier  `json:"tiers"`
	Records     []RecordEntry    `json:"records"`
	AllowList   map[string]bool  `json:"allow_list"`
	LastStakeAt map[string]int64 `json:"last_stake_at"`
	Withdrawn   map[string]bool  `json:"withdrawn"`
}

// Snapshot returns a consistent copy of the current state.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Tiers:       make(map[uint32]Tier, len(l.tiers)),
		Records:     make([]RecordEntry, 0, len(l.records)),
		AllowList:   make(map[string]bool, len(l.allowList)),
		LastStakeAt: make(map[string]int64, len(l.lastStakeAt)),
		Withdrawn:   make(map[string]bool, len(l.withdrawn)),
	}
	for id, tier := range l.tiers {
		snap.Tiers[id] = tier
	}
	for key, rec := range l.records {
		snap.Records = append(snap.Records, RecordEntry{Account: key.account, TierID: key.tier, Record: rec})
	}
	for account, status := range l.allowList {
		snap.AllowList[account] = status
	}
	for account, at := range l.lastStakeAt {
		snap.LastStakeAt[account] = at
	}
	for account, flag := range l.withdrawn {
		snap.Withdrawn[account] = flag
	}
	return snap
}

// Restore replaces the in-memory state with a previously saved snapshot.
// Intended for startup, before the ledger serves requests.
func (l *Ledger) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, tier := range snap.Tiers {
		l.tiers[id] = tier
	}
	for _, entry := range snap.Records {
		l.records[recordKey{account: entry.Account, tier: entry.TierID}] = entry.Record
	}
	for account, status := range snap.AllowList {
		l.allowList[account] = status
	}
	for account, at := range snap.LastStakeAt {
		l.lastStakeAt[account] = at
	}
	for account, flag := range snap.Withdrawn {
		l.withdrawn[account] = flag
	}
}
