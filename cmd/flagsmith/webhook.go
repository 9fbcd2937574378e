package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AceFire6/flagsmith/model"
)

func init() {
	webhookCmd.PersistentFlags().String("server", defaultLocalServerAPI, "The migration server whose API will be queried.")

	webhookCreateCmd.Flags().String("owner", "", "An opaque identifier describing the owner of the webhook.")
	webhookCreateCmd.Flags().String("url", "", "The callback URL of the webhook.")
	webhookCreateCmd.MarkFlagRequired("owner")
	webhookCreateCmd.MarkFlagRequired("url")

	webhookDeleteCmd.Flags().String("webhook", "", "The id of the webhook to be deleted.")
	webhookDeleteCmd.MarkFlagRequired("webhook")

	webhookCmd.AddCommand(webhookCreateCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookDeleteCmd)
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manipulate webhooks managed by the migration server.",
}

var webhookCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a webhook.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		ownerID, _ := command.Flags().GetString("owner")
		url, _ := command.Flags().GetString("url")

		webhook, err := client.CreateWebhook(&model.CreateWebhookRequest{
			OwnerID: ownerID,
			URL:     url,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create webhook")
		}

		return printJSON(webhook)
	},
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhooks.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		webhooks, err := client.GetWebhooks()
		if err != nil {
			return errors.Wrap(err, "failed to list webhooks")
		}

		return printJSON(webhooks)
	},
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a webhook.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString("server")
		client := model.NewClient(serverAddress)

		webhookID, _ := command.Flags().GetString("webhook")

		err := client.DeleteWebhook(webhookID)
		if err != nil {
			return errors.Wrap(err, "failed to delete webhook")
		}

		return nil
	},
}
