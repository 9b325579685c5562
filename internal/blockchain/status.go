package blockchain

import (
	"time"

	"go.uber.org/atomic"
)

// statusTracker is written by the polling goroutines and read by the UI on
// every render, so each field is stored atomically.
type statusTracker struct {
	nodeURL     atomic.String
	connected   atomic.Bool
	blockHeight atomic.Uint64
	networkID   atomic.String
	lastChecked atomic.Time
}

func (s *statusTracker) reset(nodeURL string) {
	s.nodeURL.Store(nodeURL)
	s.connected.Store(false)
	s.blockHeight.Store(0)
	s.networkID.Store("")
	s.lastChecked.Store(time.Now())
}

func (s *statusTracker) updateStatus(connected bool, blockHeight uint64, networkID string) {
	s.connected.Store(connected)
	if blockHeight > 0 {
		s.blockHeight.Store(blockHeight)
	}
	if networkID != "" {
		s.networkID.Store(networkID)
	}
	s.lastChecked.Store(time.Now())
}

func (s *statusTracker) markDisconnected() {
	s.connected.Store(false)
	s.lastChecked.Store(time.Now())
}

// GetStatus returns the last observed connection state of the node.
func (s *statusTracker) GetStatus() NetworkStatus {
	return NetworkStatus{
		Connected:   s.connected.Load(),
		NodeURL:     s.nodeURL.Load(),
		LastChecked: s.lastChecked.Load(),
		BlockHeight: s.blockHeight.Load(),
		NetworkID:   s.networkID.Load(),
	}
}
