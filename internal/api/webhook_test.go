package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/model"
)

func TestWebhooks(t *testing.T) {
	env, cleanup := setupAPI(t)
	defer cleanup()

	t.Run("creates and lists webhooks", func(t *testing.T) {
		webhook, err := env.client.CreateWebhook(&model.CreateWebhookRequest{
			OwnerID: "dashboard",
			URL:     "https://hooks.example.com/migrations",
		})
		require.NoError(t, err)
		require.NotEmpty(t, webhook.ID)
		assert.NotZero(t, webhook.CreateAt)

		webhooks, err := env.client.GetWebhooks()
		require.NoError(t, err)
		require.Len(t, webhooks, 1)
		assert.Equal(t, "https://hooks.example.com/migrations", webhooks[0].URL)
	})

	t.Run("rejects a webhook without a URL", func(t *testing.T) {
		_, err := env.client.CreateWebhook(&model.CreateWebhookRequest{OwnerID: "dashboard"})
		require.Error(t, err)
	})

	t.Run("deletes a webhook", func(t *testing.T) {
		webhook, err := env.client.CreateWebhook(&model.CreateWebhookRequest{
			OwnerID: "dashboard",
			URL:     "https://hooks.example.com/second",
		})
		require.NoError(t, err)

		err = env.client.DeleteWebhook(webhook.ID)
		require.NoError(t, err)

		err = env.client.DeleteWebhook(webhook.ID)
		require.Error(t, err)
	})

	t.Run("deleting an unknown webhook fails", func(t *testing.T) {
		err := env.client.DeleteWebhook(model.NewID())
		require.Error(t, err)
	})
}
