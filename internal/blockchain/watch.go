package blockchain

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"rhystmorgan/tokenSend/internal/transfer"
)

// ChainSource reports the chain a wallet is connected to. Both clients
// implement it.
type ChainSource interface {
	ConnectedChain(ctx context.Context) (transfer.Connection, error)
}

// WatchChain polls src until ctx is done and calls onChange whenever the
// reported chain differs from the previous one. The first chain seen is the
// baseline; failed polls are skipped.
func WatchChain(ctx context.Context, src ChainSource, interval time.Duration, logger *log.Logger, onChange func(transfer.ChainID)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		current transfer.ChainID
		known   bool
	)
	for {
		conn, err := src.ConnectedChain(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				logger.Debug("chain check failed", "err", err)
			}
		case !known:
			current, known = conn.Chain, true
		case conn.Chain != current:
			logger.Info("connected chain changed", "from", current, "to", conn.Chain)
			current = conn.Chain
			onChange(conn.Chain)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
