package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

const (
	webhookTable = "Webhook"
)

var webhookSelect sq.SelectBuilder

func init() {
	webhookSelect = sq.
		Select("ID", "OwnerID", "URL", "CreateAt", "DeleteAt").
		From(webhookTable)
}

// CreateWebhook records the given webhook to the database, assigning it a
// unique ID.
func (sqlStore *SQLStore) CreateWebhook(webhook *model.Webhook) error {
	webhook.ID = model.NewID()
	webhook.CreateAt = GetMillis()

	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Insert(webhookTable).
		SetMap(map[string]interface{}{
			"ID":       webhook.ID,
			"OwnerID":  webhook.OwnerID,
			"URL":      webhook.URL,
			"CreateAt": webhook.CreateAt,
			"DeleteAt": 0,
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create webhook")
	}

	return nil
}

// GetWebhook fetches the given webhook by ID.
func (sqlStore *SQLStore) GetWebhook(id string) (*model.Webhook, error) {
	var webhook model.Webhook
	err := sqlStore.getBuilder(sqlStore.db, &webhook, webhookSelect.Where("ID = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to query for webhook")
	}

	return &webhook, nil
}

// GetWebhooks fetches the given page of webhooks. The first page is 0.
func (sqlStore *SQLStore) GetWebhooks(filter *model.WebhookFilter) ([]*model.Webhook, error) {
	builder := webhookSelect.OrderBy("CreateAt ASC")
	builder = applyPagingFilter(builder, filter.Paging)

	if filter.OwnerID != "" {
		builder = builder.Where("OwnerID = ?", filter.OwnerID)
	}

	webhooks := []*model.Webhook{}
	err := sqlStore.selectBuilder(sqlStore.db, &webhooks, builder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query for webhooks")
	}

	return webhooks, nil
}

// DeleteWebhook marks the given webhook as deleted, but does not remove the
// record from the database.
func (sqlStore *SQLStore) DeleteWebhook(id string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(webhookTable).
		Set("DeleteAt", GetMillis()).
		Where("ID = ?", id).
		Where("DeleteAt = 0"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark webhook as deleted")
	}

	return nil
}
