package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tastythames/ssh-transfer/internal/secrets"
)

var (
	encryptKeyEnv string
	encryptNewKey bool
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Seal a password read from stdin for use as encrypted_password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		if encryptNewKey {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, key)
			return nil
		}

		key := os.Getenv(encryptKeyEnv)
		if key == "" {
			return fmt.Errorf("empty env var: %s", encryptKeyEnv)
		}
		box, err := secrets.NewBox(key)
		if err != nil {
			return err
		}

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		sealed, err := box.Seal(strings.TrimRight(line, "\r\n"))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, sealed)
		return nil
	},
}

func init() {
	encryptCmd.Flags().StringVar(&encryptKeyEnv, "key-env", "SSH_TRANSFER_KEY", "variable holding the base64 secretbox key")
	encryptCmd.Flags().BoolVar(&encryptNewKey, "new-key", false, "print a fresh key instead of sealing")
}
