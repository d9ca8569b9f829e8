package cmd

import (
	"errors"
	"fmt"

	"github.com/arkham-district/secure-tokens/internal/keypair"
	"github.com/arkham-district/secure-tokens/internal/token"
	"github.com/spf13/cobra"
)

var errInvalidSignature = errors.New("signature invalid")

func newSignCmd() *cobra.Command {
	var secretKey string

	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Sign a message with a secret token",
		Long:  `Sign the contents of file, or stdin, and print the detached signature for the X-Signature header.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.Parse(secretKey)
			if err != nil {
				return fmt.Errorf("parse secret key: %w", err)
			}
			msg, err := readMessage(cmd, args)
			if err != nil {
				return err
			}
			sig, err := keypair.Sign(msg, tok.Key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}

	cmd.Flags().StringVar(&secretKey, "key", "", "Secret token, e.g. sk_live_...")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var (
		publicKey string
		signature string
	)

	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Verify a detached signature against a public token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.Parse(publicKey)
			if err != nil {
				return fmt.Errorf("parse public key: %w", err)
			}
			msg, err := readMessage(cmd, args)
			if err != nil {
				return err
			}
			if !keypair.Verify(msg, signature, tok.Key) {
				return errInvalidSignature
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&publicKey, "key", "", "Public token, e.g. pk_live_...")
	cmd.Flags().StringVar(&signature, "signature", "", "Detached signature to check")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}
