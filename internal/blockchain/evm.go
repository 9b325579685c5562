package blockchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"rhystmorgan/tokenSend/internal/transfer"
)

// ethBackend is the subset of *ethclient.Client the EVM client needs.
type ethBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	Close()
}

// EVMClient connects the transfer controller to an Ethereum JSON-RPC node.
// It acts as wallet and simulator for a single keystore account.
type EVMClient struct {
	statusTracker

	backend  ethBackend
	config   Config
	account  common.Address
	approver Approver
	limiter  *rate.Limiter
	tokens   *TokenCache
	logger   *log.Logger
}

func DialEVM(ctx context.Context, config Config, account common.Address, approver Approver, logger *log.Logger) (*EVMClient, error) {
	if config.NodeURL == "" {
		return nil, errors.New("evm network requires a node url")
	}
	config = config.withDefaults()

	dialCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	backend, err := ethclient.DialContext(dialCtx, config.NodeURL)
	if err != nil {
		return nil, NewNodeUnavailableError(config.NodeURL, err)
	}

	c := newEVMClient(backend, config, account, approver, logger)
	if _, err := c.checkConnection(dialCtx); err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

func newEVMClient(backend ethBackend, config Config, account common.Address, approver Approver, logger *log.Logger) *EVMClient {
	config = config.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard)
	}

	c := &EVMClient{
		backend:  backend,
		config:   config,
		account:  account,
		approver: approver,
		limiter:  rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		tokens:   NewTokenCache(config.CacheTTL, DefaultCacheEntries),
		logger:   logger.With("network", EVM),
	}
	c.reset(config.NodeURL)
	return c
}

// checkConnection reads the head block and chain id and records the outcome
// in the connection status.
func (c *EVMClient) checkConnection(ctx context.Context) (transfer.ChainID, error) {
	head, err := withRetry(ctx, c.config, c.logger, "block number", c.backend.BlockNumber)
	if err != nil {
		c.markDisconnected()
		return 0, NewNetworkError("failed to connect to node", err)
	}

	chain, err := c.chainID(ctx)
	if err != nil {
		c.markDisconnected()
		return 0, err
	}

	c.updateStatus(true, head, chain.String())
	return chain, nil
}

func (c *EVMClient) chainID(ctx context.Context) (transfer.ChainID, error) {
	if c.config.ChainID != 0 {
		return transfer.ChainID(c.config.ChainID), nil
	}

	id, err := withRetry(ctx, c.config, c.logger, "chain id", c.backend.ChainID)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id %s out of range", id)
	}
	return transfer.ChainID(id.Uint64()), nil
}

// ConnectedChain reports the node's chain and refreshes the connection status.
func (c *EVMClient) ConnectedChain(ctx context.Context) (transfer.Connection, error) {
	chain, err := c.checkConnection(ctx)
	if err != nil {
		return transfer.Connection{}, err
	}
	return transfer.Connection{Chain: chain, Account: c.account}, nil
}

// SimulateCall runs the transfer with eth_call against the latest block.
func (c *EVMClient) SimulateCall(ctx context.Context, call *transfer.PreparedCall) error {
	msg := ethereum.CallMsg{
		From: call.From,
		To:   &call.Token,
		Data: call.Data,
	}

	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return &transfer.SimulationError{Reason: reason, Cause: err}
		}
		classified := ClassifyError(err)
		return &transfer.SimulationError{Reason: classified.UserMessage(), Cause: classified}
	}

	ok, err := transfer.DecodeTransferResult(out)
	if err != nil {
		return &transfer.SimulationError{Reason: "unexpected transfer result", Cause: err}
	}
	if !ok {
		return &transfer.SimulationError{Reason: "token transfer returned false"}
	}
	return nil
}

// RequestSignatureAndBroadcast asks the approver for the signing key, then
// signs and sends a legacy EIP-155 transaction carrying the prepared call.
func (c *EVMClient) RequestSignatureAndBroadcast(ctx context.Context, call *transfer.PreparedCall) (string, error) {
	chain, err := c.chainID(ctx)
	if err != nil {
		return "", err
	}
	if chain != call.Chain {
		return "", NewWrongChainError(call.Chain, chain)
	}

	key, err := c.approver.Approve(ctx, call)
	if err != nil {
		return "", err
	}
	if from := crypto.PubkeyToAddress(key.PublicKey); from != call.From {
		return "", NewBlockchainError(ErrInvalidAddress,
			fmt.Sprintf("unlocked key %s does not match account %s", from.Hex(), call.From.Hex()), nil)
	}

	nonce, err := withRetry(ctx, c.config, c.logger, "nonce", func(ctx context.Context) (uint64, error) {
		return c.backend.PendingNonceAt(ctx, call.From)
	})
	if err != nil {
		return "", err
	}

	gasPrice, err := withRetry(ctx, c.config, c.logger, "gas price", c.backend.SuggestGasPrice)
	if err != nil {
		return "", err
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: call.From, To: &call.Token, Data: call.Data})
	if err != nil {
		return "", ClassifyError(err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &call.Token,
		Value:    new(big.Int),
		Data:     call.Data,
	})

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(uint64(call.Chain)))
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		return "", NewBlockchainError(ErrTransactionFailed, "failed to sign transaction", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", ClassifyError(err)
	}

	c.tokens.Invalidate(call.Token.Hex())
	c.logger.Info("sent transaction", "tx", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return signed.Hash().Hex(), nil
}

// TokenInfo reads ERC-20 metadata and the holder's balance. Metadata is cached.
func (c *EVMClient) TokenInfo(ctx context.Context, token, holder common.Address) (*TokenInfo, error) {
	if cached, found := c.tokens.Get(token.Hex()); found {
		return cached, nil
	}

	info := &TokenInfo{}
	if err := c.callToken(ctx, token, "name", &info.Name); err != nil {
		return nil, err
	}
	if err := c.callToken(ctx, token, "symbol", &info.Symbol); err != nil {
		return nil, err
	}
	if err := c.callToken(ctx, token, "decimals", &info.Decimals); err != nil {
		return nil, err
	}
	if err := c.callToken(ctx, token, "balanceOf", &info.Balance, holder); err != nil {
		return nil, err
	}

	c.tokens.Set(token.Hex(), info)
	c.logger.Debug("cached token metadata", "token", token.Hex(), "symbol", info.Symbol, "entries", c.tokens.Size())
	return info, nil
}

func (c *EVMClient) callToken(ctx context.Context, token common.Address, method string, out interface{}, args ...interface{}) error {
	data, err := transfer.ERC20.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := withRetry(ctx, c.config, c.logger, method, func(ctx context.Context) ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	})
	if err != nil {
		return err
	}

	if err := transfer.ERC20.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

func (c *EVMClient) Close() error {
	c.backend.Close()
	return nil
}

// revertReason extracts the revert string from an eth_call error.
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	if idx := strings.Index(strings.ToLower(msg), "execution reverted"); idx >= 0 {
		reason := strings.TrimPrefix(msg[idx+len("execution reverted"):], ":")
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = "execution reverted"
		}
		return reason, true
	}
	return "", false
}
