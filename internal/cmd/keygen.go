package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/spf13/cobra"

	solanainfra "candymint/internal/infra/solana"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a Solana CLI compatible keypair file for the mint wallet",
	RunE:  runKeygen,
}

func init() {
	keygenCmd.Flags().StringP("out", "o", "candymint-wallet.json", "keypair file to write")
	keygenCmd.Flags().Bool("force", false, "overwrite an existing file")
	keygenCmd.Flags().Bool("print-secret", false, "also print the base58 secret (WALLET_PRIVATE_KEY format)")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	force, _ := cmd.Flags().GetBool("force")
	printSecret, _ := cmd.Flags().GetBool("print-secret")

	if out == "" {
		return errors.New("--out is empty")
	}
	if _, err := os.Stat(out); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", out)
	}

	acc := types.NewAccount()
	data, err := solanainfra.EncodeKeypairJSON(acc)
	if err != nil {
		return fmt.Errorf("failed to encode keypair: %w", err)
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Public key:\n  %s\n\n", acc.PublicKey.ToBase58())
	fmt.Fprintf(w, "Keypair file (Solana CLI compatible):\n  %s\n\n", out)
	if printSecret {
		fmt.Fprintf(w, "Secret (base58):\n  %s\n\n", solanainfra.EncodePrivateKeyBase58(acc))
	}
	fmt.Fprintln(w, "Do not commit this file. Store it in Secret Manager (WALLET_KEY_SECRET) for shared use.")
	return nil
}
