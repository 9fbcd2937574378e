package supervisor_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/supervisor"
	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

type mockMigrationRunner struct {
	err      error
	runCalls int
	onRun    func(migration *model.IdentityMigration)
}

func (r *mockMigrationRunner) Run(_ context.Context, migration *model.IdentityMigration) error {
	r.runCalls++
	if r.onRun != nil {
		r.onRun(migration)
	}
	return r.err
}

func markInProgress(t *testing.T, sqlStore *store.SQLStore, projectID string) *model.IdentityMigration {
	transitioned, err := sqlStore.TryTransitionIdentityMigration(projectID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
	require.NoError(t, err)
	require.True(t, transitioned)

	migration, err := sqlStore.GetIdentityMigration(projectID)
	require.NoError(t, err)
	return migration
}

func TestIdentityMigrationSupervisorDo(t *testing.T) {
	t.Run("no migration pending work", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{}

		testlib.CreateMigratableProject(t, sqlStore)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		err := migrationSupervisor.Do()
		require.NoError(t, err)

		assert.Equal(t, 0, runner.runCalls)
	})

	t.Run("runs every migration pending work", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{}

		project1 := testlib.CreateMigratableProject(t, sqlStore)
		project2 := testlib.CreateMigratableProject(t, sqlStore)
		markInProgress(t, sqlStore, project1.ID)
		markInProgress(t, sqlStore, project2.ID)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		err := migrationSupervisor.Do()
		require.NoError(t, err)

		assert.Equal(t, 2, runner.runCalls)
		for _, projectID := range []string{project1.ID, project2.ID} {
			migration, err := sqlStore.GetIdentityMigration(projectID)
			require.NoError(t, err)
			assert.Equal(t, model.IdentityMigrationStateComplete, migration.State)
		}
	})
}

func TestIdentityMigrationSupervisorSupervise(t *testing.T) {
	t.Run("successful run completes the migration", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{}

		project := testlib.CreateMigratableProject(t, sqlStore)
		migration := markInProgress(t, sqlStore, project.ID)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		migrationSupervisor.Supervise(migration)

		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateComplete, migration.State)
		assert.NotZero(t, migration.StartAt)
		assert.NotZero(t, migration.CompleteAt)
		assert.Nil(t, migration.LockAcquiredBy)
	})

	t.Run("failed run keeps progress for the next attempt", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{
			err: errors.New("target store unavailable"),
			onRun: func(migration *model.IdentityMigration) {
				migration.Cursor = "user-0199"
				migration.SkippedRecords = 3
			},
		}

		project := testlib.CreateMigratableProject(t, sqlStore)
		migration := markInProgress(t, sqlStore, project.ID)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		migrationSupervisor.Supervise(migration)

		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateFailed, migration.State)
		assert.Equal(t, "user-0199", migration.Cursor)
		assert.Equal(t, int64(3), migration.SkippedRecords)
	})

	t.Run("does not run a migration that is not in progress", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{}

		project := testlib.CreateMigratableProject(t, sqlStore)
		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		migrationSupervisor.Supervise(migration)

		assert.Equal(t, 0, runner.runCalls)
		migration, err = sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateNotStarted, migration.State)
	})

	t.Run("does not run when the state changed since selection", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{}

		project := testlib.CreateMigratableProject(t, sqlStore)
		migration := markInProgress(t, sqlStore, project.ID)

		// Simulate another server completing the migration after this one
		// selected it.
		transitioned, err := sqlStore.TryTransitionIdentityMigration(project.ID, []model.IdentityMigrationState{model.IdentityMigrationStateInProgress}, model.IdentityMigrationStateComplete)
		require.NoError(t, err)
		require.True(t, transitioned)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		migrationSupervisor.Supervise(migration)

		assert.Equal(t, 0, runner.runCalls)
	})

	t.Run("does not run a migration locked by another server", func(t *testing.T) {
		logger := testlib.MakeLogger(t)
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)
		runner := &mockMigrationRunner{}

		project := testlib.CreateMigratableProject(t, sqlStore)
		migration := markInProgress(t, sqlStore, project.ID)

		locked, err := sqlStore.LockIdentityMigration(project.ID, "other-instance")
		require.NoError(t, err)
		require.True(t, locked)

		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, runner, "instanceID", 0, "test", logger)
		migrationSupervisor.Supervise(migration)

		assert.Equal(t, 0, runner.runCalls)
		migration, err = sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateInProgress, migration.State)
	})
}
