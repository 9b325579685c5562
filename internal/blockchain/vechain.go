package blockchain

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/darrenvechain/thorgo/crypto/tx"
	"github.com/darrenvechain/thorgo/thorest"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"rhystmorgan/tokenSend/internal/transfer"
)

const (
	DefaultMainnetURL = "https://mainnet.veblocks.net"
	DefaultTestnetURL = "https://testnet.veblocks.net"

	// BaseGasPrice is VTHO wei per unit of gas at a gas price coefficient of 0.
	BaseGasPrice = 1e13

	// vmGasOverhead covers the clause invocation that inspect results leave out.
	vmGasOverhead    = 15000
	expirationBlocks = 32
)

// EnergyAddress is the built-in VTHO token contract.
var EnergyAddress = common.HexToAddress("0x0000000000000000000000000000456E65726779")

// thorBackend is the subset of *thorest.Client the VeChain client needs.
type thorBackend interface {
	BestBlock() (*thorest.Block, error)
	ChainTag() (byte, error)
	Account(addr common.Address) (*thorest.Account, error)
	Inspect(body thorest.InspectRequest) ([]thorest.InspectResponse, error)
	SendTransaction(transaction *tx.Transaction) (*thorest.SendTransactionResponse, error)
	TransactionReceipt(id common.Hash) (*thorest.TransactionReceipt, error)
}

// ThorClient connects the transfer controller to a VeChainThor node. Chains
// are identified by their genesis chain tag.
type ThorClient struct {
	statusTracker

	backend  thorBackend
	config   Config
	account  common.Address
	approver Approver
	logger   *log.Logger

	mu      sync.Mutex
	expires map[string]uint64
}

func NewThorClient(config Config, account common.Address, approver Approver, logger *log.Logger) (*ThorClient, error) {
	if config.NodeURL == "" {
		config.NodeURL = DefaultMainnetURL
	}

	c := newThorClient(thorest.NewClientFromURL(config.NodeURL), config, account, approver, logger)
	if err := c.checkConnection(); err != nil {
		return nil, err
	}
	return c, nil
}

func newThorClient(backend thorBackend, config Config, account common.Address, approver Approver, logger *log.Logger) *ThorClient {
	config = config.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard)
	}

	c := &ThorClient{
		backend:  backend,
		config:   config,
		account:  account,
		approver: approver,
		logger:   logger.With("network", VeChain),
		expires:  make(map[string]uint64),
	}
	c.reset(config.NodeURL)
	return c
}

func (c *ThorClient) checkConnection() error {
	best, err := c.backend.BestBlock()
	if err != nil {
		c.markDisconnected()
		return NewNetworkError("failed to connect to VeChain network", err)
	}

	c.updateStatus(true, uint64(best.Number), best.ID.String())
	return nil
}

// ConnectedChain reports the genesis chain tag and refreshes the connection status.
func (c *ThorClient) ConnectedChain(ctx context.Context) (transfer.Connection, error) {
	if err := c.checkConnection(); err != nil {
		return transfer.Connection{}, err
	}
	if c.config.ChainID != 0 {
		return transfer.Connection{Chain: transfer.ChainID(c.config.ChainID), Account: c.account}, nil
	}

	tag, err := withRetry(ctx, c.config, c.logger, "chain tag", func(context.Context) (byte, error) {
		return c.backend.ChainTag()
	})
	if err != nil {
		return transfer.Connection{}, err
	}
	return transfer.Connection{Chain: transfer.ChainID(tag), Account: c.account}, nil
}

// SimulateCall dry-runs the token clause against the best block and checks
// the sender holds enough VTHO for the gas it used. The measured gas limit
// is recorded in call.Gas.
func (c *ThorClient) SimulateCall(ctx context.Context, call *transfer.PreparedCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gas, err := c.inspect(call)
	if err != nil {
		return err
	}

	energy, err := c.EnergyBalance(call.From)
	if err != nil {
		classified := ClassifyError(err)
		return &transfer.SimulationError{Reason: classified.UserMessage(), Cause: classified}
	}

	required := new(big.Int).Mul(new(big.Int).SetUint64(gas), big.NewInt(BaseGasPrice))
	if call.Token == EnergyAddress {
		required.Add(required, call.Amount)
	}
	if energy.Cmp(required) < 0 {
		insufficient := NewInsufficientFundsError(required, energy, "VTHO")
		return &transfer.SimulationError{Reason: insufficient.Message, Cause: insufficient}
	}

	call.Gas = gas
	return nil
}

// inspect executes the transfer clause without committing it and returns
// the gas limit a transaction carrying it needs.
func (c *ThorClient) inspect(call *transfer.PreparedCall) (uint64, error) {
	clause := tokenClause(call)
	caller := call.From

	results, err := c.backend.Inspect(thorest.InspectRequest{
		Caller:  &caller,
		Clauses: []*tx.Clause{clause},
	})
	if err != nil {
		classified := ClassifyError(err)
		return 0, &transfer.SimulationError{Reason: classified.UserMessage(), Cause: classified}
	}
	if len(results) != 1 {
		return 0, &transfer.SimulationError{
			Reason: "unexpected simulation result",
			Cause:  fmt.Errorf("node returned %d results for 1 clause", len(results)),
		}
	}

	result := results[0]
	if result.Reverted {
		return 0, &transfer.SimulationError{
			Reason: inspectRevertReason(result),
			Cause:  NewBlockchainError(ErrExecutionReverted, "clause reverted", nil),
		}
	}

	ok, err := transfer.DecodeTransferResult(result.Data)
	if err != nil {
		return 0, &transfer.SimulationError{Reason: "unexpected transfer result", Cause: err}
	}
	if !ok {
		return 0, &transfer.SimulationError{Reason: "token transfer returned false"}
	}

	intrinsic, err := tx.IntrinsicGas(clause)
	if err != nil {
		return 0, &transfer.SimulationError{Reason: "failed to compute gas", Cause: err}
	}
	if result.GasUsed == 0 {
		return intrinsic, nil
	}
	return intrinsic + result.GasUsed + vmGasOverhead, nil
}

func (c *ThorClient) RequestSignatureAndBroadcast(ctx context.Context, call *transfer.PreparedCall) (string, error) {
	chainTag, err := c.backend.ChainTag()
	if err != nil {
		return "", NewNetworkError("failed to get chain tag", err)
	}
	if transfer.ChainID(chainTag) != call.Chain {
		return "", NewWrongChainError(call.Chain, transfer.ChainID(chainTag))
	}

	gas := call.Gas
	if gas == 0 {
		if gas, err = c.inspect(call); err != nil {
			return "", err
		}
	}

	key, err := c.approver.Approve(ctx, call)
	if err != nil {
		return "", err
	}
	if from := crypto.PubkeyToAddress(key.PublicKey); from != call.From {
		return "", NewBlockchainError(ErrInvalidAddress,
			fmt.Sprintf("unlocked key %s does not match account %s", from.Hex(), call.From.Hex()), nil)
	}

	bestBlock, err := c.backend.BestBlock()
	if err != nil {
		return "", NewNetworkError("failed to get best block", err)
	}
	blockRef := tx.NewBlockRef(uint32(bestBlock.Number))

	thorTx := tx.NewBuilder(tx.TypeLegacy).
		ChainTag(chainTag).
		BlockRef(blockRef).
		Expiration(expirationBlocks).
		Gas(gas).
		GasPriceCoef(0).
		Clause(tokenClause(call)).
		Build()

	signedTx, err := tx.Sign(thorTx, key)
	if err != nil {
		return "", NewBlockchainError(ErrTransactionFailed, "failed to sign transaction", err)
	}

	response, err := c.backend.SendTransaction(signedTx)
	if err != nil {
		return "", ClassifyError(err)
	}

	txID := response.ID.String()
	c.mu.Lock()
	c.expires[txID] = uint64(bestBlock.Number) + expirationBlocks
	c.mu.Unlock()

	c.logger.Info("sent transaction", "tx", txID, "block_ref", uint64(bestBlock.Number), "gas", gas)
	return txID, nil
}

// WaitForReceipt polls for the receipt. VeChain blocks are final once
// included, so confirmations count blocks seen since the receipt appeared.
func (c *ThorClient) WaitForReceipt(ctx context.Context, txHash string, confirmations uint64) (*transfer.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	var seenAt uint64
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		best, err := c.backend.BestBlock()
		if err != nil {
			c.logger.Debug("best block unavailable", "err", err)
			c.markDisconnected()
			continue
		}
		height := uint64(best.Number)
		c.updateStatus(true, height, best.ID.String())

		receipt, err := c.backend.TransactionReceipt(common.HexToHash(txHash))
		if err != nil || receipt == nil {
			if c.expired(txHash, height) {
				return nil, fmt.Errorf("%s expired before inclusion: %w", txHash, transfer.ErrDropped)
			}
			continue
		}

		if receipt.Reverted {
			c.forget(txHash)
			return &transfer.Receipt{TxHash: txHash, BlockNumber: height, Reverted: true}, nil
		}

		if seenAt == 0 {
			seenAt = height
		}
		if have := confirmationsAt(height, seenAt); have >= confirmations {
			c.forget(txHash)
			return &transfer.Receipt{TxHash: txHash, BlockNumber: seenAt, Confirmations: have}, nil
		}
	}
}

// EnergyBalance returns the VTHO balance of address.
func (c *ThorClient) EnergyBalance(address common.Address) (*big.Int, error) {
	account, err := c.backend.Account(address)
	if err != nil {
		return nil, NewNetworkError("failed to get VTHO balance", err)
	}

	return account.Energy.ToInt(), nil
}

func (c *ThorClient) expired(txHash string, height uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.expires[txHash]
	return ok && height > expiry
}

func (c *ThorClient) forget(txHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.expires, txHash)
}

func (c *ThorClient) Close() error {
	return nil
}

func tokenClause(call *transfer.PreparedCall) *tx.Clause {
	token := call.Token
	return tx.NewClause(&token).WithValue(new(big.Int)).WithData(call.Data)
}

func inspectRevertReason(result thorest.InspectResponse) string {
	if reason, err := abi.UnpackRevert(result.Data); err == nil {
		return reason
	}
	if result.VmError != "" {
		return result.VmError
	}
	return "execution reverted"
}
