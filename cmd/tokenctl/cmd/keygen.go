package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/arkham-district/secure-tokens/internal/keypair"
	"github.com/arkham-district/secure-tokens/internal/sealed"
	"github.com/arkham-district/secure-tokens/internal/token"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		secretPrefix string
		publicPrefix string
		environment  string
		masterKey    bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a prefixed keypair, or a master key with --master-key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if masterKey {
				key, err := sealed.GenerateKey()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}

			kp, err := keypair.GeneratePrefixed(secretPrefix, publicPrefix, environment)
			if err != nil {
				return err
			}
			if !token.Valid(kp.SecretKey) || !token.Valid(kp.PublicKey) {
				return fmt.Errorf("prefixes and environment must be lowercase letters")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintf(w, "Secret key:\t%s\n", kp.SecretKey)
			fmt.Fprintf(w, "Public key:\t%s\n", kp.PublicKey)
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&secretPrefix, "secret-prefix", "sk", "Secret key prefix")
	cmd.Flags().StringVar(&publicPrefix, "public-prefix", "pk", "Public key prefix")
	cmd.Flags().StringVar(&environment, "env", "live", "Token environment")
	cmd.Flags().BoolVar(&masterKey, "master-key", false, "Print a new base64 master key instead of a keypair")
	return cmd
}
