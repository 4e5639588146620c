package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dehyl/missionctl/internal/auth"
)

func newInitKeysCmd() *cobra.Command {
	var client string
	var keysFile string

	cmd := &cobra.Command{
		Use:   "init-keys",
		Short: "Create a keys file with a generated dev API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := auth.BootstrapDevKey(keysFile, client)
			if err != nil {
				return err
			}
			if !res.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "keys file already exists: %s\n", res.KeysFile)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", res.KeysFile)
			fmt.Fprintf(cmd.OutOrStdout(), "client %q key: %s\n", res.Client, res.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "dev", "client name to register the key under")
	cmd.Flags().StringVar(&keysFile, "keys-file", "", "path to the keys file (default: MC_KEYS_FILE or missionctl.keys.yaml)")

	return cmd
}
