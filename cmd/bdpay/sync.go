package main

import (
	"encoding/json"
	"fmt"
	"strings"

	bdpay "github.com/goliatone/go-bdpay"
	"github.com/goliatone/go-bdpay/adapters/gocommand"
	"github.com/goliatone/go-bdpay/adapters/gologger"
	"github.com/goliatone/go-bdpay/adapters/zaplog"
	bdpaycmd "github.com/goliatone/go-bdpay/command"
	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/ledger"
	bdpayquery "github.com/goliatone/go-bdpay/query"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var orderID, kind string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Poll the gateway for an order's status and record it in the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			txKind, ok := core.ParseTransactionKind(kind)
			if !ok {
				return fmt.Errorf("kind must be payment or disbursement, got %q", kind)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := zaplog.New(zaplog.FromConfig(cfg.Logging))
			if err != nil {
				return err
			}
			defer func() { _ = logger.Close() }()

			ctx := cmd.Context()
			client, err := bdpay.NewClient(cfg, bdpay.WithLoggerProvider(logger))
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, gologger.Component(logger, "store"))
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			facade, err := bdpay.NewFacade(client, st.Transactions,
				bdpay.WithLedgerOptions(ledger.WithLogger(gologger.Component(logger, "ledger"))),
			)
			if err != nil {
				return err
			}
			subs, err := facade.Subscribe(nil)
			if err != nil {
				return err
			}
			defer func() {
				for _, sub := range subs {
					sub.Unsubscribe()
				}
			}()

			orderID = strings.TrimSpace(orderID)
			if err := gocommand.Dispatch(ctx, bdpaycmd.SyncStatusMessage{OrderID: orderID, Kind: txKind}); err != nil {
				return err
			}
			record, err := gocommand.Query[bdpayquery.GetTransactionMessage, core.Transaction](ctx,
				bdpayquery.GetTransactionMessage{OrderID: orderID, Kind: txKind})
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]any{
				"id":             record.ID,
				"order_id":       record.OrderID,
				"transaction_id": record.TransactionID,
				"type":           string(record.Kind),
				"status":         string(record.Status),
				"amount":         record.FormattedAmount(),
				"updated_at":     record.UpdatedAt,
			})
		},
	}
	cmd.Flags().StringVarP(&orderID, "order", "o", "", "Merchant order id")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.TransactionKindPayment), "payment or disbursement")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}
