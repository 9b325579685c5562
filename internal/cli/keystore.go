package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rhystmorgan/tokenSend/internal/config"
	"rhystmorgan/tokenSend/internal/models"
	"rhystmorgan/tokenSend/internal/storage"
	"rhystmorgan/tokenSend/internal/utils"
)

func newKeystoreCommand(flags *dialogFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage the signing keystore",
	}
	cmd.AddCommand(newKeystoreImportCommand(flags), newKeystoreAddressCommand(flags))
	return cmd
}

func newKeystoreImportCommand(flags *dialogFlags) *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a BIP39 mnemonic into the keystore",
		Long: `Reads a mnemonic from standard input, derives the signing account and
stores the mnemonic encrypted with a password.

Example:
  tokensend keystore import
  tokensend keystore import --path "m/44'/818'/0'/0/0" < phrase.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			keystore := storage.NewKeystore(cfg.Keystore)
			if keystore.Exists() && !force {
				return fmt.Errorf("keystore %s already exists, use --force to replace it", keystore.Path())
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			mnemonic, err := readMnemonic(cmd.InOrStdin(), interactive)
			if err != nil {
				return err
			}
			if unknown := utils.UnknownMnemonicWords(mnemonic); len(unknown) > 0 {
				return fmt.Errorf("%w: unknown words: %s", models.ErrInvalidMnemonic, strings.Join(unknown, ", "))
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}
			strength, issues := utils.ValidatePassword(password)
			if strength == utils.PasswordWeak {
				return fmt.Errorf("password is too weak: %s", strings.Join(issues, "; "))
			}
			for _, issue := range issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", issue)
			}

			if path == "" {
				path = models.DerivationPath(cfg.Network.Kind)
			}
			account, err := keystore.Import(mnemonic, password, path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s) into %s\n", account.Address.Hex(), path, keystore.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "derivation path (default depends on the network)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing keystore")
	return cmd
}

func newKeystoreAddressCommand(flags *dialogFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the keystore account address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			address, err := storage.NewKeystore(cfg.Keystore).Address()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), address.Hex())
			return nil
		},
	}
}
