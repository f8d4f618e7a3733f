package cmd

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/database"
	"github.com/G-Research/dropingester/internal/dropingester/configuration"
	"github.com/G-Research/dropingester/internal/dropingester/store"
)

func migrateDbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrateDatabase",
		Short: "migrates the postgres database to the latest version",
		RunE:  migrateDatabase,
	}
	cmd.Flags().Duration(
		"timeout",
		5*time.Minute,
		"Duration after which the migration will fail if it has not completed")
	return cmd
}

func migrateDatabase(cmd *cobra.Command, _ []string) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return errors.WithStack(err)
	}
	config, err := loadConfig()
	if err != nil {
		return err
	}
	if config.Database.Type != configuration.DatabaseTypePostgres {
		log.Infof("Database type is %s, whose schema is created on startup. Nothing to migrate.", config.Database.Type)
		return nil
	}

	ctx, cancel := appcontext.WithTimeout(appcontext.Background(), timeout)
	defer cancel()

	start := time.Now()
	log.Info("Beginning drop ingester database migration")
	migrations, err := store.PostgresMigrations()
	if err != nil {
		return err
	}
	db, err := database.OpenPgxPool(ctx, config.Database.Postgres)
	if err != nil {
		return errors.WithMessage(err, "Failed to connect to database")
	}
	defer db.Close()
	if err := database.UpdateDatabase(ctx, db, migrations); err != nil {
		return errors.WithMessage(err, "Failed to migrate drop ingester database")
	}
	log.Infof("Drop ingester database migrated in %s", time.Since(start))
	return nil
}
