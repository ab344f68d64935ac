package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-bdpay/config"
	"github.com/goliatone/go-bdpay/core"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bdpay",
		Short:         "BDPay gateway client: callback server, signing tools and ledger migrations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (core.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return core.Config{}, err
	}
	return config.NewLoader(path).Load(cmd.Context())
}
