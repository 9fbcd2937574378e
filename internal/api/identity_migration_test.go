package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/model"
)

func TestTriggerIdentityMigration(t *testing.T) {
	t.Run("accepts the trigger and pokes the supervisor", func(t *testing.T) {
		env, cleanup := setupAPI(t)
		defer cleanup()

		project, err := env.client.CreateProject(&model.CreateProjectRequest{Name: "one", EnableDynamoDB: true})
		require.NoError(t, err)

		migration, err := env.client.TriggerIdentityMigration(project.ID)
		require.NoError(t, err)
		require.NotNil(t, migration)
		assert.Equal(t, model.IdentityMigrationStateInProgress, migration.State)
		assert.NotZero(t, migration.RequestAt)
		assert.Equal(t, 1, env.supervisor.doCalls)
	})

	t.Run("second trigger conflicts and echoes the running migration", func(t *testing.T) {
		env, cleanup := setupAPI(t)
		defer cleanup()

		project, err := env.client.CreateProject(&model.CreateProjectRequest{Name: "one", EnableDynamoDB: true})
		require.NoError(t, err)

		_, err = env.client.TriggerIdentityMigration(project.ID)
		require.NoError(t, err)

		migration, err := env.client.TriggerIdentityMigration(project.ID)
		require.ErrorIs(t, err, model.ErrMigrationNotTriggerable)
		require.NotNil(t, migration)
		assert.Equal(t, model.IdentityMigrationStateInProgress, migration.State)
		assert.Equal(t, 1, env.supervisor.doCalls)
	})

	t.Run("failed migration can be triggered again", func(t *testing.T) {
		env, cleanup := setupAPI(t)
		defer cleanup()

		project, err := env.client.CreateProject(&model.CreateProjectRequest{Name: "one", EnableDynamoDB: true})
		require.NoError(t, err)

		_, err = env.client.TriggerIdentityMigration(project.ID)
		require.NoError(t, err)
		transitioned, err := env.sqlStore.TryTransitionIdentityMigration(project.ID, []model.IdentityMigrationState{model.IdentityMigrationStateInProgress}, model.IdentityMigrationStateFailed)
		require.NoError(t, err)
		require.True(t, transitioned)

		migration, err := env.client.TriggerIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateInProgress, migration.State)
	})

	t.Run("unknown project fails", func(t *testing.T) {
		env, cleanup := setupAPI(t)
		defer cleanup()

		_, err := env.client.TriggerIdentityMigration("no-such-project")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrMigrationNotTriggerable)
	})

	t.Run("project without dynamo storage fails", func(t *testing.T) {
		env, cleanup := setupAPI(t)
		defer cleanup()

		project, err := env.client.CreateProject(&model.CreateProjectRequest{Name: "one"})
		require.NoError(t, err)

		_, err = env.client.TriggerIdentityMigration(project.ID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrMigrationNotTriggerable)
		assert.Equal(t, 0, env.supervisor.doCalls)
	})
}

func TestGetIdentityMigrations(t *testing.T) {
	env, cleanup := setupAPI(t)
	defer cleanup()

	project1, err := env.client.CreateProject(&model.CreateProjectRequest{Name: "one", EnableDynamoDB: true})
	require.NoError(t, err)
	project2, err := env.client.CreateProject(&model.CreateProjectRequest{Name: "two", EnableDynamoDB: true})
	require.NoError(t, err)

	_, err = env.client.TriggerIdentityMigration(project2.ID)
	require.NoError(t, err)

	t.Run("lists all migrations", func(t *testing.T) {
		migrations, err := env.client.GetIdentityMigrations(&model.GetIdentityMigrationsRequest{
			Paging: model.AllPagesNotDeleted(),
		})
		require.NoError(t, err)
		assert.Len(t, migrations, 2)
	})

	t.Run("filters by state", func(t *testing.T) {
		migrations, err := env.client.GetIdentityMigrations(&model.GetIdentityMigrationsRequest{
			Paging: model.AllPagesNotDeleted(),
			State:  string(model.IdentityMigrationStateInProgress),
		})
		require.NoError(t, err)
		require.Len(t, migrations, 1)
		assert.Equal(t, project2.ID, migrations[0].ProjectID)
	})

	t.Run("rejects an unknown state", func(t *testing.T) {
		_, err := env.client.GetIdentityMigrations(&model.GetIdentityMigrationsRequest{
			Paging: model.AllPagesNotDeleted(),
			State:  "RUNNING",
		})
		require.Error(t, err)
	})

	t.Run("migration status for an unknown project is nil", func(t *testing.T) {
		migration, err := env.client.GetIdentityMigration("no-such-project")
		require.NoError(t, err)
		assert.Nil(t, migration)
	})

	t.Run("migration status reports progress fields", func(t *testing.T) {
		migration, err := env.client.GetIdentityMigration(project1.ID)
		require.NoError(t, err)
		require.NotNil(t, migration)
		assert.Equal(t, model.IdentityMigrationStateNotStarted, migration.State)
		assert.Zero(t, migration.SkippedRecords)
		assert.Empty(t, migration.Cursor)
	})
}
