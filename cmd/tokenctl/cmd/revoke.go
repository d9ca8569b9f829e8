package cmd

import (
	"errors"
	"fmt"

	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [credential-id]",
		Short: "Revoke a credential",
		Long:  `Delete a credential. Requests using it are rejected as UnknownCredential from then on.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid credential id %q", args[0])
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			if err := b.store.DeleteCredential(ctx, id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("credential %s not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked credential %s\n", id)
			return nil
		},
	}
}
