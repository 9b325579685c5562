package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"rhystmorgan/tokenSend/internal/transfer"
)

// receiptPoll tracks one transaction until it is confirmed, reverted or
// dropped. It is owned by the polling goroutine.
type receiptPoll struct {
	hash          common.Hash
	confirmations uint64
	misses        int
	polls         uint64
}

// WaitForReceipt polls the node until the transaction has the requested
// number of confirmations. A hash unknown to the node for DropAfter
// consecutive polls is reported as transfer.ErrDropped.
func (c *EVMClient) WaitForReceipt(ctx context.Context, txHash string, confirmations uint64) (*transfer.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	poll := &receiptPoll{hash: common.HexToHash(txHash), confirmations: confirmations}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.pollReceipt(ctx, poll)
		if err != nil || receipt != nil {
			c.logger.Debug("receipt polling finished", "tx", txHash, "polls", poll.polls, "err", err)
			return receipt, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollReceipt returns (nil, nil) while the transaction is still pending.
func (c *EVMClient) pollReceipt(ctx context.Context, poll *receiptPoll) (*transfer.Receipt, error) {
	poll.polls++

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	receipt, err := c.backend.TransactionReceipt(ctx, poll.hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return nil, c.checkDropped(ctx, poll)
	case err != nil:
		return nil, c.transientPollError(ctx, err)
	case receipt == nil:
		return nil, nil
	}
	poll.misses = 0

	if receipt.Status != types.ReceiptStatusSuccessful {
		return c.toReceipt(poll.hash, receipt, 0, true), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, c.transientPollError(ctx, err)
	}

	confirmations := confirmationsAt(head, blockOf(receipt))
	if confirmations < poll.confirmations {
		c.logger.Debug("waiting for confirmations", "tx", poll.hash.Hex(), "have", confirmations, "want", poll.confirmations)
		return nil, nil
	}
	c.updateStatus(true, head, "")
	return c.toReceipt(poll.hash, receipt, confirmations, false), nil
}

func (c *EVMClient) checkDropped(ctx context.Context, poll *receiptPoll) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, _, err := c.backend.TransactionByHash(ctx, poll.hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		poll.misses++
		if poll.misses >= c.config.DropAfter {
			return fmt.Errorf("%s unknown to node after %d polls: %w", poll.hash.Hex(), poll.misses, transfer.ErrDropped)
		}
		return nil
	case err != nil:
		return c.transientPollError(ctx, err)
	default:
		poll.misses = 0
		return nil
	}
}

// transientPollError swallows retryable node errors so polling continues.
func (c *EVMClient) transientPollError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	classified := ClassifyError(err)
	if classified.IsRetryable() {
		c.logger.Debug("receipt poll failed, retrying", "err", err)
		c.markDisconnected()
		return nil
	}
	return classified
}

func (c *EVMClient) toReceipt(hash common.Hash, receipt *types.Receipt, confirmations uint64, reverted bool) *transfer.Receipt {
	return &transfer.Receipt{
		TxHash:        hash.Hex(),
		BlockNumber:   blockOf(receipt),
		Reverted:      reverted,
		Confirmations: confirmations,
	}
}

func confirmationsAt(head, block uint64) uint64 {
	if head < block {
		return 0
	}
	return head - block + 1
}

func blockOf(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
