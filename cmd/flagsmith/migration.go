package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/model"
)

func init() {
	migrationCmd.PersistentFlags().String("server", defaultLocalServerAPI, "The migration server whose API will be queried.")

	migrationTriggerCmd.Flags().String("project", "", "The id of the project to migrate.")
	migrationTriggerCmd.MarkFlagRequired("project")

	migrationGetCmd.Flags().String("project", "", "The id of the project whose migration to get.")
	migrationGetCmd.MarkFlagRequired("project")

	migrationListCmd.Flags().String("state", "", "The state to filter migrations by.")
	migrationListCmd.Flags().Int("page", 0, "The page of migrations to fetch, starting at 0.")
	migrationListCmd.Flags().Int("per-page", 100, "The number of migrations to fetch per page.")
	migrationListCmd.Flags().Bool("table", false, "Whether to display the returned migration list in a table or not.")

	migrationResetCmd.Flags().String("database", "", "The database backing the migration server.")
	migrationResetCmd.Flags().String("project", "", "The id of the project whose migration to reset.")
	migrationResetCmd.MarkFlagRequired("database")
	migrationResetCmd.MarkFlagRequired("project")

	migrationCmd.AddCommand(migrationTriggerCmd)
	migrationCmd.AddCommand(migrationGetCmd)
	migrationCmd.AddCommand(migrationListCmd)
	migrationCmd.AddCommand(migrationResetCmd)
}

var migrationCmd = &cobra.Command{
	Use:   "migration",
	Short: "Manipulate identity migrations managed by the migration server.",
}

var migrationTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Trigger the migration of a project's identities into DynamoDB.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		projectID, _ := command.Flags().GetString("project")

		migration, err := client.TriggerIdentityMigration(projectID)
		if err == model.ErrMigrationNotTriggerable {
			logger.Warnf("Migration is already %s; nothing to do", migration.State)
			return printJSON(migration)
		}
		if err != nil {
			return errors.Wrap(err, "failed to trigger identity migration")
		}

		return printJSON(migration)
	},
}

var migrationGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get the identity migration status of a project.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		projectID, _ := command.Flags().GetString("project")

		migration, err := client.GetIdentityMigration(projectID)
		if err != nil {
			return errors.Wrap(err, "failed to get identity migration")
		}

		return printJSON(migration)
	},
}

var migrationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identity migrations.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		state, _ := command.Flags().GetString("state")
		page, _ := command.Flags().GetInt("page")
		perPage, _ := command.Flags().GetInt("per-page")

		migrations, err := client.GetIdentityMigrations(&model.GetIdentityMigrationsRequest{
			Paging: model.Paging{
				Page:    page,
				PerPage: perPage,
			},
			State: state,
		})
		if err != nil {
			return errors.Wrap(err, "failed to list identity migrations")
		}

		outputToTable, _ := command.Flags().GetBool("table")
		if outputToTable {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeader([]string{"PROJECT", "STATE", "SKIPPED", "CURSOR"})

			for _, migration := range migrations {
				table.Append([]string{
					migration.ProjectID,
					string(migration.State),
					strconv.FormatInt(migration.SkippedRecords, 10),
					migration.Cursor,
				})
			}
			table.Render()

			return nil
		}

		return printJSON(migrations)
	},
}

// migrationResetCmd operates on the database directly rather than the API.
// Resetting a completed migration is an administrative override and is
// deliberately unreachable through the server's trigger endpoint.
var migrationResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Force a project's identity migration back to its initial state.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		database, _ := command.Flags().GetString("database")
		sqlStore, err := store.New(database, logger)
		if err != nil {
			return errors.Wrap(err, "failed to connect to database")
		}
		defer sqlStore.Close()

		projectID, _ := command.Flags().GetString("project")

		migration, err := sqlStore.ResetIdentityMigration(projectID)
		if err != nil {
			return errors.Wrap(err, "failed to reset identity migration")
		}
		if migration == nil {
			return errors.Errorf("no identity migration found for project %s", projectID)
		}

		return printJSON(migration)
	},
}
