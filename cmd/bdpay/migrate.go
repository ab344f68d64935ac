package main

import (
	"context"
	"fmt"

	bdpaymigrations "github.com/goliatone/go-bdpay/migrations"
	mongostore "github.com/goliatone/go-bdpay/store/mongo"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema to the configured store",
		Long: `Migrate applies the transaction and webhook claim tables to the SQL
store named by store.driver, or creates the collection indexes when the
store is mongo.

Examples:
  bdpay migrate -c bdpay.yml
  bdpay migrate --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch driver := normalizeDriver(cfg.Store.Driver); driver {
			case driverSQLite, driverPostgres:
				dialect := bdpaymigrations.DialectSQLite
				if driver == driverPostgres {
					dialect = bdpaymigrations.DialectPostgres
				}
				names, err := bdpaymigrations.Names(dialect)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintf(out, "%s %s\n", dialect, name)
				}
				if dryRun {
					fmt.Fprintln(out, "dry run: no changes made")
					return nil
				}
				client, _, err := openPersistence(cfg.Store)
				if err != nil {
					return err
				}
				defer client.Close()
				if err := migrate(ctx, client, dialect); err != nil {
					return err
				}
				fmt.Fprintf(out, "applied %d %s migrations\n", len(names), dialect)
				return nil
			case driverMongo:
				if dryRun {
					fmt.Fprintf(out, "would ensure indexes on %s.%s\n", cfg.Mongo.Database, cfg.Mongo.Collection)
					return nil
				}
				client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
				if err != nil {
					return fmt.Errorf("connect mongo: %w", err)
				}
				defer func() { _ = client.Disconnect(context.Background()) }()
				store, err := mongostore.NewTransactionStore(client.Database(cfg.Mongo.Database), mongostore.WithCollection(cfg.Mongo.Collection))
				if err != nil {
					return err
				}
				if err := store.EnsureIndexes(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "ensured indexes on %s.%s\n", cfg.Mongo.Database, cfg.Mongo.Collection)
				return nil
			default:
				return fmt.Errorf("store driver %q has no schema to migrate", driver)
			}
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List migrations without applying them")
	return cmd
}
