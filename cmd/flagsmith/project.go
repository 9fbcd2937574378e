package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AceFire6/flagsmith/model"
)

func init() {
	projectCmd.PersistentFlags().String("server", defaultLocalServerAPI, "The migration server whose API will be queried.")

	projectCreateCmd.Flags().String("name", "", "The name of the project.")
	projectCreateCmd.Flags().Bool("enable-dynamo", false, "Whether the project stores identities in DynamoDB.")
	projectCreateCmd.MarkFlagRequired("name")

	projectGetCmd.Flags().String("project", "", "The id of the project to get.")
	projectGetCmd.MarkFlagRequired("project")

	projectListCmd.Flags().Bool("table", false, "Whether to display the returned project list in a table or not.")

	projectReportCmd.Flags().Bool("table", false, "Whether to display the returned report in a table or not.")

	identityCreateCmd.Flags().String("project", "", "The id of the project owning the identity.")
	identityCreateCmd.Flags().String("identifier", "", "The identifier of the identity, unique within the project.")
	identityCreateCmd.MarkFlagRequired("project")
	identityCreateCmd.MarkFlagRequired("identifier")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectGetCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectReportCmd)
	projectCmd.AddCommand(identityCreateCmd)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manipulate projects managed by the migration server.",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		name, _ := command.Flags().GetString("name")
		enableDynamo, _ := command.Flags().GetBool("enable-dynamo")

		project, err := client.CreateProject(&model.CreateProjectRequest{
			Name:           name,
			EnableDynamoDB: enableDynamo,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create project")
		}

		return printJSON(project)
	},
}

var projectGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a project.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		projectID, _ := command.Flags().GetString("project")

		project, err := client.GetProject(projectID)
		if err != nil {
			return errors.Wrap(err, "failed to get project")
		}

		return printJSON(project)
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		projects, err := client.GetProjects()
		if err != nil {
			return errors.Wrap(err, "failed to list projects")
		}

		outputToTable, _ := command.Flags().GetBool("table")
		if outputToTable {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeader([]string{"ID", "NAME", "DYNAMO ENABLED"})

			for _, project := range projects {
				table.Append([]string{
					project.ID,
					project.Name,
					strconv.FormatBool(project.EnableDynamoDB),
				})
			}
			table.Render()

			return nil
		}

		return printJSON(projects)
	},
}

var projectReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report identity counts and migration statuses for all projects.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		reports, err := client.GetProjectReports()
		if err != nil {
			return errors.Wrap(err, "failed to get project reports")
		}

		outputToTable, _ := command.Flags().GetBool("table")
		if outputToTable {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeader([]string{"ID", "NAME", "IDENTITIES", "MIGRATION STATE", "CAN MIGRATE"})

			for _, report := range reports {
				count := strconv.FormatInt(report.IdentityCount, 10)
				if report.CountUnavailable {
					count = "unavailable"
				}
				table.Append([]string{
					report.ProjectID,
					report.ProjectName,
					count,
					string(report.MigrationState),
					strconv.FormatBool(report.TriggerEnabled()),
				})
			}
			table.Render()

			return nil
		}

		return printJSON(reports)
	},
}

var identityCreateCmd = &cobra.Command{
	Use:   "add-identity",
	Short: "Store a new identity within a project.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		projectID, _ := command.Flags().GetString("project")
		identifier, _ := command.Flags().GetString("identifier")

		identity, err := client.CreateIdentity(projectID, &model.CreateIdentityRequest{
			Identifier: identifier,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create identity")
		}

		return printJSON(identity)
	},
}
