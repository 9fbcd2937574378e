package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

type mockWebhookStore struct {
	webhooks []*model.Webhook
	err      error
}

func (s *mockWebhookStore) GetWebhooks(filter *model.WebhookFilter) ([]*model.Webhook, error) {
	return s.webhooks, s.err
}

func TestSendToAllWebhooks(t *testing.T) {
	logger := testlib.MakeLogger(t)

	t.Run("delivers the payload to every webhook", func(t *testing.T) {
		received := make(chan model.WebhookPayload, 2)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload model.WebhookPayload
			err := json.NewDecoder(r.Body).Decode(&payload)
			require.NoError(t, err)
			received <- payload
		}))
		defer ts.Close()

		store := &mockWebhookStore{webhooks: []*model.Webhook{
			{ID: model.NewID(), URL: ts.URL},
			{ID: model.NewID(), URL: ts.URL},
		}}

		payload := &model.WebhookPayload{
			Type:      model.TypeIdentityMigration,
			ID:        "project-1",
			NewState:  string(model.IdentityMigrationStateComplete),
			OldState:  string(model.IdentityMigrationStateInProgress),
			Timestamp: time.Now().UnixNano(),
		}
		err := SendToAllWebhooks(store, payload, logger)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			select {
			case got := <-received:
				assert.Equal(t, "project-1", got.ID)
				assert.Equal(t, string(model.IdentityMigrationStateComplete), got.NewState)
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for webhook delivery")
			}
		}
	})

	t.Run("fails when webhooks cannot be queried", func(t *testing.T) {
		store := &mockWebhookStore{err: errors.New("database down")}

		err := SendToAllWebhooks(store, &model.WebhookPayload{}, logger)
		require.Error(t, err)
	})

	t.Run("no webhooks is a no-op", func(t *testing.T) {
		store := &mockWebhookStore{}

		err := SendToAllWebhooks(store, &model.WebhookPayload{}, logger)
		require.NoError(t, err)
	})
}
