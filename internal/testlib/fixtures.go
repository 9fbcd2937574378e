package testlib

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/model"
)

// CreateMigratableProject creates a project eligible for identity migration.
func CreateMigratableProject(t *testing.T, sqlStore *store.SQLStore) *model.Project {
	project := &model.Project{
		Name:           "test-project",
		EnableDynamoDB: true,
	}
	err := sqlStore.CreateProject(project)
	require.NoError(t, err)
	return project
}

// CreateIdentities stores the given number of identities within the project,
// each with a small set of traits.
func CreateIdentities(t *testing.T, sqlStore *store.SQLStore, projectID string, count int) []*model.Identity {
	identities := make([]*model.Identity, 0, count)
	for i := 0; i < count; i++ {
		identity := &model.Identity{
			ProjectID:  projectID,
			Identifier: fmt.Sprintf("user-%04d", i),
			Traits: []model.Trait{
				{Key: "logins", ValueType: model.TraitValueTypeInteger, IntegerValue: int64(i)},
			},
			FlagOverrides: []model.FlagOverride{
				{FeatureKey: "dark-mode", Enabled: i%2 == 0},
			},
		}
		err := sqlStore.CreateIdentity(identity)
		require.NoError(t, err)
		identities = append(identities, identity)
	}
	return identities
}
