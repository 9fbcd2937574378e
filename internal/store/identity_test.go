package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

func TestCreateAndGetIdentity(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)

	identity := &model.Identity{
		ProjectID:  project.ID,
		Identifier: "user-1",
		Traits: []model.Trait{
			{Key: "plan", ValueType: model.TraitValueTypeString, StringValue: "scale-up"},
			{Key: "logins", ValueType: model.TraitValueTypeInteger, IntegerValue: 42},
		},
		FlagOverrides: []model.FlagOverride{
			{FeatureKey: "dark-mode", Enabled: true},
		},
	}
	err := sqlStore.CreateIdentity(identity)
	require.NoError(t, err)
	require.NotEmpty(t, identity.ID)

	fetched, err := sqlStore.GetIdentity(identity.ID)
	require.NoError(t, err)
	assert.Equal(t, identity, fetched)

	t.Run("unknown identity", func(t *testing.T) {
		fetched, err := sqlStore.GetIdentity("unknown")
		require.NoError(t, err)
		assert.Nil(t, fetched)
	})
}

func TestGetIdentitiesPaging(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)
	testlib.CreateIdentities(t, sqlStore, project.ID, 5)

	var seen []string
	cursor := ""
	pages := 0
	for {
		identities, _, nextCursor, err := sqlStore.GetIdentities(project.ID, cursor, 2)
		require.NoError(t, err)
		for _, identity := range identities {
			seen = append(seen, identity.Identifier)
		}
		pages++
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)

	t.Run("restartable from cursor", func(t *testing.T) {
		firstPage, _, cursor, err := sqlStore.GetIdentities(project.ID, "", 2)
		require.NoError(t, err)
		require.Len(t, firstPage, 2)

		resumed, _, _, err := sqlStore.GetIdentities(project.ID, cursor, 2)
		require.NoError(t, err)
		require.Len(t, resumed, 2)
		assert.NotEqual(t, firstPage[1].ID, resumed[0].ID)
	})

	t.Run("empty project", func(t *testing.T) {
		otherProject := createTestProject(t, sqlStore)
		identities, _, nextCursor, err := sqlStore.GetIdentities(otherProject.ID, "", 2)
		require.NoError(t, err)
		assert.Empty(t, identities)
		assert.Equal(t, "", nextCursor)
	})
}

func TestCreateOrUpdateIdentity(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)

	identity := &model.Identity{
		ProjectID:  project.ID,
		Identifier: "user-1",
		Traits: []model.Trait{
			{Key: "plan", ValueType: model.TraitValueTypeString, StringValue: "free"},
		},
	}
	err := sqlStore.CreateOrUpdateIdentity(identity)
	require.NoError(t, err)

	originalID := identity.ID

	rewrite := &model.Identity{
		ProjectID:  project.ID,
		Identifier: "user-1",
		Traits: []model.Trait{
			{Key: "plan", ValueType: model.TraitValueTypeString, StringValue: "scale-up"},
		},
	}
	err = sqlStore.CreateOrUpdateIdentity(rewrite)
	require.NoError(t, err)

	count, err := sqlStore.GetIdentityCount(project.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	fetched, err := sqlStore.GetIdentity(originalID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "scale-up", fetched.Traits[0].StringValue)
}

func TestGetIdentityCounts(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project1 := createTestProject(t, sqlStore)
	project2 := createTestProject(t, sqlStore)
	empty := createTestProject(t, sqlStore)

	testlib.CreateIdentities(t, sqlStore, project1.ID, 3)
	testlib.CreateIdentities(t, sqlStore, project2.ID, 7)

	counts, err := sqlStore.GetIdentityCounts()
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[project1.ID])
	assert.EqualValues(t, 7, counts[project2.ID])

	_, ok := counts[empty.ID]
	assert.False(t, ok)

	count, err := sqlStore.GetIdentityCount(project2.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, count)
}
