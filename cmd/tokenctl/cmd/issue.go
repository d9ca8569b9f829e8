package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/spf13/cobra"
)

func newIssueCmd() *cobra.Command {
	var (
		tenantName string
		name       string
		abilities  []string
		expiresIn  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a credential for a tenant, creating the tenant if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			issuer, err := b.issuer()
			if err != nil {
				return err
			}
			tenant, err := b.tenant(ctx, tenantName, true)
			if err != nil {
				return err
			}

			params := auth.IssueParams{Name: name, Abilities: abilities}
			if expiresIn != 0 {
				at := time.Now().UTC().Add(expiresIn)
				params.ExpiresAt = &at
			}
			res, err := issuer.Issue(ctx, tenant, params)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Store the secret key now. It cannot be shown again.")
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant name")
	cmd.Flags().StringVar(&name, "name", "", "Credential name")
	cmd.Flags().StringSliceVar(&abilities, "ability", nil, "Granted ability, repeatable (default unrestricted)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Lifetime, e.g. 720h (default from TOKENS_DEFAULT_TTL)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCmd() *cobra.Command {
	var tenantName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			issuer, err := b.issuer()
			if err != nil {
				return err
			}
			tenant, err := b.tenant(ctx, tenantName, false)
			if err != nil {
				return err
			}
			creds, err := issuer.For(tenant).ListCredentials(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tABILITIES\tEXPIRES\tLAST USED")
			for _, c := range creds {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Name, strings.Join(c.Abilities, ","), formatTime(c.ExpiresAt), formatTime(c.LastUsedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant name")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
