package identitystore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/identitystore"
	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

func TestSQLIdentityStoreWriteBatch(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := testlib.CreateMigratableProject(t, sqlStore)
	adapter := identitystore.NewSQLIdentityStore(sqlStore)

	batch := []*model.Identity{
		{
			Identifier: "user-1",
			Traits: []model.Trait{
				{Key: "plan", ValueType: model.TraitValueTypeString, StringValue: "free"},
			},
		},
		{
			Identifier: "user-2",
			Traits: []model.Trait{
				{Key: "plan", ValueType: model.TraitValueTypeString, StringValue: "scale-up"},
			},
		},
	}

	err := adapter.WriteBatch(context.Background(), project.ID, batch)
	require.NoError(t, err)

	t.Run("retrying the same batch is an upsert, not a duplicate", func(t *testing.T) {
		batch[0].Traits[0].StringValue = "startup"

		err := adapter.WriteBatch(context.Background(), project.ID, batch)
		require.NoError(t, err)

		count, err := adapter.Count(context.Background(), project.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		page, err := adapter.List(context.Background(), project.ID, "", 10)
		require.NoError(t, err)
		require.Len(t, page.Identities, 2)
		for _, identity := range page.Identities {
			if identity.Identifier == "user-1" {
				assert.Equal(t, "startup", identity.Traits[0].StringValue)
			}
		}
	})

	t.Run("invalid identity fails as a data error", func(t *testing.T) {
		err := adapter.WriteBatch(context.Background(), project.ID, []*model.Identity{{Identifier: ""}})
		require.Error(t, err)
		assert.True(t, identitystore.IsDataError(err))
	})
}
