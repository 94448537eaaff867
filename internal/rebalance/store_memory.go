package rebalance

import (
	"context"
	"sync"

	"auction_rebalancer/internal/core"
)

// MemoryStore implements core.IRebalanceStore in memory. Used by tests and
// ephemeral deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*core.RebalanceSnapshot
	bids      map[string][]*core.BidRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*core.RebalanceSnapshot),
		bids:      make(map[string][]*core.BidRecord),
	}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot *core.RebalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Portfolio] = snapshot
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, portfolio string) (*core.RebalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[portfolio], nil
}

func (s *MemoryStore) AppendBid(_ context.Context, record *core.BidRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[record.Portfolio] = append(s.bids[record.Portfolio], record)
	return nil
}

func (s *MemoryStore) ListBids(_ context.Context, portfolio string, limit int) ([]*core.BidRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.bids[portfolio]
	if limit > 0 && limit < len(records) {
		records = records[len(records)-limit:]
	}
	out := make([]*core.BidRecord, len(records))
	copy(out, records)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
