package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Webhook is a registered callback URL notified of migration state changes.
type Webhook struct {
	ID       string
	OwnerID  string
	URL      string
	CreateAt int64
	DeleteAt int64
}

// IsDeleted returns whether the webhook was marked as deleted or not.
func (w *Webhook) IsDeleted() bool {
	return w.DeleteAt != 0
}

// WebhookPayload is the payload sent to webhook endpoints on a state change.
type WebhookPayload struct {
	Timestamp int64             `json:"timestamp"`
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	NewState  string            `json:"new_state"`
	OldState  string            `json:"old_state"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

const (
	// TypeIdentityMigration is the webhook payload type for identity
	// migration state changes.
	TypeIdentityMigration = "identity_migration"
)

// ToJSON returns the payload as a JSON string.
func (p *WebhookPayload) ToJSON() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// WebhookFilter describes the parameters used to constrain a set of webhooks.
type WebhookFilter struct {
	Paging
	OwnerID string
}

// CreateWebhookRequest specifies the fields needed to register a webhook.
type CreateWebhookRequest struct {
	OwnerID string
	URL     string
}

// NewCreateWebhookRequestFromReader will create a CreateWebhookRequest from
// an io.Reader with JSON data.
func NewCreateWebhookRequestFromReader(reader io.Reader) (*CreateWebhookRequest, error) {
	var request CreateWebhookRequest
	err := json.NewDecoder(reader).Decode(&request)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode create webhook request")
	}
	if request.URL == "" {
		return nil, errors.New("webhook URL is required")
	}

	return &request, nil
}

// NewWebhookFromReader will create a Webhook from an io.Reader with JSON data.
func NewWebhookFromReader(reader io.Reader) (*Webhook, error) {
	var webhook Webhook
	err := json.NewDecoder(reader).Decode(&webhook)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode webhook")
	}

	return &webhook, nil
}

// NewWebhooksFromReader will create a slice of Webhooks from an io.Reader
// with JSON data.
func NewWebhooksFromReader(reader io.Reader) ([]*Webhook, error) {
	webhooks := []*Webhook{}
	err := json.NewDecoder(reader).Decode(&webhooks)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode webhooks")
	}

	return webhooks, nil
}
