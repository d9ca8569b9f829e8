package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the tokenctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "secure-tokens admin CLI",
		Long:          `Generate keypairs, sign and verify messages offline, and issue or revoke stored credentials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newKeygenCmd(),
		newSignCmd(),
		newVerifyCmd(),
		newIssueCmd(),
		newListCmd(),
		newRevokeCmd(),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readMessage returns the contents of the file named by args, or stdin when
// no file is given.
func readMessage(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		msg, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read message: %w", err)
		}
		return msg, nil
	}
	msg, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read message from stdin: %w", err)
	}
	return msg, nil
}
