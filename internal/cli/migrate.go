package cli

import (
	"fmt"

	"donation-ledger/config"
	"donation-ledger/database"
	"donation-ledger/pkg/logger"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate only applies to STORE_DRIVER=%s", config.StoreDriverPostgres)
			}

			log := logger.New(cfg.AppEnv)
			defer log.Sync()

			db, err := database.Connect(cfg.DBURL, cfg.IsProduction())
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Infof("Connected and migrated successfully")
			return nil
		},
	}
}
