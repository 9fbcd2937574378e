package webhook

import (
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/AceFire6/flagsmith/model"
)

// Sender builds and dispatches the webhook payloads for resource state
// changes.
type Sender struct {
	store       webhookStore
	environment string
}

// NewSender creates a Sender tagging payloads with the given environment
// name.
func NewSender(store webhookStore, environment string) *Sender {
	return &Sender{
		store:       store,
		environment: environment,
	}
}

// SendIdentityMigrationWebhook notifies all webhooks of an identity
// migration state change.
func (s *Sender) SendIdentityMigrationWebhook(migration *model.IdentityMigration, oldState string, logger log.FieldLogger) {
	oldState = ensureNotEmptyState(oldState)

	webhookPayload := &model.WebhookPayload{
		Type:      model.TypeIdentityMigration,
		ID:        migration.ProjectID,
		NewState:  string(migration.State),
		OldState:  oldState,
		Timestamp: time.Now().UnixNano(),
		ExtraData: map[string]string{"SkippedRecords": strconv.FormatInt(migration.SkippedRecords, 10), "Environment": s.environment},
	}

	err := SendToAllWebhooks(s.store, webhookPayload, logger.WithField("webhookEvent", webhookPayload.NewState))
	if err != nil {
		logger.WithError(err).Error("Unable to process and send webhooks")
	}
}

func ensureNotEmptyState(state string) string {
	if state == "" {
		return "n/a"
	}
	return state
}
