package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/config"
	"github.com/uniportal/internship-portal/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(db *sql.DB, log *zap.Logger) error {
			if err := postgres.MigrateUp(db); err != nil {
				return err
			}
			return printVersion(cmd, db)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		all, _ := cmd.Flags().GetBool("all")
		yes, _ := cmd.Flags().GetBool("yes")
		if all {
			steps = 0
		} else if steps <= 0 {
			return errors.New("--steps must be positive, use --all to roll back everything")
		}
		if !yes {
			label := fmt.Sprintf("Roll back %d migration(s)? Match data may be lost", steps)
			if all {
				label = "Roll back every migration? All portal data will be dropped"
			}
			prompt := promptui.Prompt{Label: label, IsConfirm: true}
			if _, err := prompt.Run(); err != nil {
				return errors.New("aborted")
			}
		}
		return withDB(cmd, func(db *sql.DB, log *zap.Logger) error {
			if err := postgres.MigrateDown(db, steps); err != nil {
				return err
			}
			log.Info("rolled back", zap.Int("steps", steps))
			return printVersion(cmd, db)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(db *sql.DB, _ *zap.Logger) error {
			return printVersion(cmd, db)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	migrateDownCmd.Flags().IntP("steps", "n", 1, "number of migrations to roll back")
	migrateDownCmd.Flags().Bool("all", false, "roll back every migration")
	migrateDownCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func withDB(cmd *cobra.Command, fn func(db *sql.DB, log *zap.Logger) error) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations need the postgres driver, got %q", cfg.Database.Driver)
	}
	db, err := postgres.Open(cmd.Context(), cfg.Database.Postgres(), log)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db, log)
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	v, dirty, err := postgres.SchemaVersion(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", v, dirty)
	return nil
}
