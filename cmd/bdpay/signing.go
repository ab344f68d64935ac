package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/security"
	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a JSON object with the active environment's secret key",
		Long: `Sign prints the signature the gateway expects for a JSON object.

The object is read from --data, or from stdin when --data is empty.

Examples:
  bdpay sign --data '{"order_id":"ORD-1","amount":150000}'
  echo '{"order_id":"ORD-1"}' | bdpay sign`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fields, err := readPayload(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			codec, err := security.NewCodecFromStrings(cfg.Active().SecretKey, "")
			if err != nil {
				return err
			}
			if !codec.CanSign() {
				return fmt.Errorf("no secret key configured for %s", cfg.EnvironmentName())
			}
			signature, err := codec.Sign(fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signature)
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON object to sign")
	return cmd
}

func verifyCmd() *cobra.Command {
	var data, signature string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a gateway signature against a JSON object",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fields, err := readPayload(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			codec, err := security.NewCodecFromStrings("", cfg.Active().VerificationKey())
			if err != nil {
				return err
			}
			if !codec.CanVerify() {
				return fmt.Errorf("no platform public key configured for %s", cfg.EnvironmentName())
			}
			if !codec.Verify(signature, fields) {
				return fmt.Errorf("signature is invalid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature is valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON object the signature covers")
	cmd.Flags().StringVarP(&signature, "signature", "s", "", "Base64 signature to check")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func readPayload(stdin io.Reader, data string) (map[string]any, error) {
	raw := []byte(data)
	if strings.TrimSpace(data) == "" {
		if stdin == nil {
			stdin = os.Stdin
		}
		read, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		raw = read
	}
	fields, err := core.DecodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return fields, nil
}
