// Package cli implements the tokensend command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"rhystmorgan/tokenSend/internal/audit"
	"rhystmorgan/tokenSend/internal/blockchain"
	"rhystmorgan/tokenSend/internal/config"
	"rhystmorgan/tokenSend/internal/security"
	"rhystmorgan/tokenSend/internal/storage"
	"rhystmorgan/tokenSend/internal/transfer"
	"rhystmorgan/tokenSend/internal/utils"
	"rhystmorgan/tokenSend/internal/views"
)

type dialogFlags struct {
	configPath string
	token      string
	to         string
	amount     string
	name       string
	symbol     string
	decimals   int32
}

// backend is what a chain adapter provides to the controller and the dialog.
type backend interface {
	transfer.Wallet
	transfer.Simulator
	GetStatus() blockchain.NetworkStatus
	Close() error
}

func NewRootCommand() *cobra.Command {
	flags := &dialogFlags{}

	cmd := &cobra.Command{
		Use:   "tokensend",
		Short: "Send an ERC-20 token from the terminal",
		Long: `tokensend opens a send dialog for one token. It checks the transfer
against the node before it can be confirmed, asks for the keystore password
to sign, and follows the transaction until it is confirmed.

Example:
  tokensend --token 0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984 --to 0x... --amount 1.5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDialog(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: ~/.tokensend/config.toml)")

	f := cmd.Flags()
	f.StringVar(&flags.token, "token", "", "token contract address")
	f.StringVar(&flags.to, "to", "", "recipient address")
	f.StringVar(&flags.amount, "amount", "", "amount in token units, e.g. 1.5")
	f.StringVar(&flags.name, "name", "", "token name shown in the dialog")
	f.StringVar(&flags.symbol, "symbol", "", "token symbol shown in the dialog")
	f.Int32Var(&flags.decimals, "decimals", 18, "token decimals")

	cmd.AddCommand(newKeystoreCommand(flags))
	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func loadConfig(cmd *cobra.Command, flags *dialogFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.token != "" {
		cfg.Token.Address = flags.token
	}
	if flags.name != "" {
		cfg.Token.Name = flags.name
	}
	if flags.symbol != "" {
		cfg.Token.Symbol = flags.symbol
	}
	if cmd.Flags().Changed("decimals") {
		cfg.Token.Decimals = flags.decimals
	}
	return cfg, cfg.Validate()
}

func runDialog(cmd *cobra.Command, flags *dialogFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Token.Address) {
		return errors.New("a token address is required (--token or [token].address)")
	}

	logger, logCloser, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	keystore := storage.NewKeystore(cfg.Keystore)
	account, err := keystore.Address()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	approver := views.NewPromptApprover()
	chain, err := dialBackend(ctx, cfg, account, approver, logger)
	if err != nil {
		return err
	}
	defer chain.Close()

	summary, err := cfg.TokenSummary()
	if err != nil {
		return err
	}
	if evm, ok := chain.(*blockchain.EVMClient); ok {
		summary = fillTokenSummary(ctx, evm, summary, account, !cmd.Flags().Changed("decimals"), logger)
	}

	req := transfer.NewTransferRequest(summary.Address)
	if flags.to != "" {
		req.Recipient = flags.to
	}
	if flags.amount != "" {
		if req.Amount, err = utils.ParseAmount(flags.amount, summary.Decimals); err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
	}

	overrides, err := cfg.ExplorerOverrides()
	if err != nil {
		return err
	}
	bc := cfg.ToBlockchainConfig()
	opts := append(cfg.ControllerOptions(), transfer.WithLogger(logger))
	controller := transfer.New(chain, chain, bc.Network.Explorers().Merge(overrides), opts...)
	controller.OpenDialog(summary, req)

	stopWatch := startChainWatch(ctx, chain, bc.PollInterval, controller, logger)

	stopAudit, err := startAudit(controller, cfg.AuditDir, summary.Symbol, logger)
	if err != nil {
		return err
	}

	dialog := views.NewTokenDialogModel(controller, approver, security.NewUnlockGuard(keystore, 3))
	dialog.SetStatusSource(chain)
	app := views.NewAppModel(dialog)

	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()

	stopWatch()
	controller.CloseDialog()
	controller.Wait()
	stopAudit()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running dialog: %w", runErr)
	}
	printOutcome(cmd.OutOrStdout(), app)
	return nil
}

func dialBackend(ctx context.Context, cfg *config.Config, account common.Address, approver blockchain.Approver, logger *log.Logger) (backend, error) {
	bc := cfg.ToBlockchainConfig()

	if bc.Network == blockchain.VeChain {
		client, err := blockchain.NewThorClient(bc, account, approver, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, bc.Timeout)
	defer cancel()
	client, err := blockchain.DialEVM(dialCtx, bc, account, approver, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// fillTokenSummary completes the display context from the token contract.
// Lookup failures keep the configured values.
func fillTokenSummary(ctx context.Context, evm *blockchain.EVMClient, summary transfer.TokenSummary, holder common.Address, useChainDecimals bool, logger *log.Logger) transfer.TokenSummary {
	info, err := evm.TokenInfo(ctx, common.HexToAddress(summary.Address), holder)
	if err != nil {
		logger.Warn("token lookup failed", "token", summary.Address, "err", err)
		return summary
	}

	if summary.Name == "" {
		summary.Name = info.Name
	}
	if summary.Symbol == "" {
		summary.Symbol = info.Symbol
	}
	if useChainDecimals {
		summary.Decimals = int32(info.Decimals)
	}
	if summary.Balance.IsZero() && info.Balance != nil {
		summary.Balance = decimal.NewFromBigInt(info.Balance, -int32(info.Decimals))
	}
	return summary
}

// startChainWatch prepares the dialog again whenever the wallet reports a
// different chain.
func startChainWatch(ctx context.Context, src blockchain.ChainSource, interval time.Duration, controller *transfer.Controller, logger *log.Logger) func() {
	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		blockchain.WatchChain(watchCtx, src, interval, logger, func(transfer.ChainID) {
			controller.ChainChanged()
		})
	}()

	return func() {
		cancel()
		<-done
	}
}

func startAudit(controller *transfer.Controller, dir, token string, logger *log.Logger) (func(), error) {
	auditor, err := audit.NewTransferAuditor(dir, token, logger)
	if err != nil {
		return nil, err
	}

	states, unsubscribe := controller.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		auditor.Watch(states)
	}()

	return func() {
		unsubscribe()
		<-done
		if err := auditor.Close(); err != nil {
			logger.Error("failed to flush audit log", "err", err)
		}
	}, nil
}

func printOutcome(w io.Writer, app *views.AppModel) {
	state := app.FinalState()
	if state.TxHash == "" {
		return
	}
	fmt.Fprintf(w, "%s\n", state)
	if link := app.FinalLink(); link != "" {
		fmt.Fprintln(w, link)
	}
}
