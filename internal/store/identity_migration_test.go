package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

func createTestProject(t *testing.T, sqlStore *store.SQLStore) *model.Project {
	project := &model.Project{Name: "project", EnableDynamoDB: true}
	err := sqlStore.CreateProject(project)
	require.NoError(t, err)
	return project
}

func TestIdentityMigrationCreatedWithProject(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)

	migration, err := sqlStore.GetIdentityMigration(project.ID)
	require.NoError(t, err)
	require.NotNil(t, migration)
	assert.Equal(t, model.IdentityMigrationStateNotStarted, migration.State)
	assert.Equal(t, "", migration.Cursor)
	assert.True(t, migration.ValidState())
}

func TestTryTransitionIdentityMigration(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)

	t.Run("not started to in progress", func(t *testing.T) {
		ok, err := sqlStore.TryTransitionIdentityMigration(project.ID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
		require.NoError(t, err)
		assert.True(t, ok)

		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateInProgress, migration.State)
		assert.NotZero(t, migration.RequestAt)
	})

	t.Run("second transition is rejected without side effect", func(t *testing.T) {
		ok, err := sqlStore.TryTransitionIdentityMigration(project.ID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
		require.NoError(t, err)
		assert.False(t, ok)

		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateInProgress, migration.State)
	})

	t.Run("in progress to complete clears cursor", func(t *testing.T) {
		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		migration.Cursor = "identity-5"
		err = sqlStore.UpdateIdentityMigrationProgress(migration)
		require.NoError(t, err)

		ok, err := sqlStore.TryTransitionIdentityMigration(project.ID, []model.IdentityMigrationState{model.IdentityMigrationStateInProgress}, model.IdentityMigrationStateComplete)
		require.NoError(t, err)
		assert.True(t, ok)

		migration, err = sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateComplete, migration.State)
		assert.Equal(t, "", migration.Cursor)
		assert.NotZero(t, migration.CompleteAt)
	})

	t.Run("complete cannot be re-triggered", func(t *testing.T) {
		ok, err := sqlStore.TryTransitionIdentityMigration(project.ID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
		require.NoError(t, err)
		assert.False(t, ok)

		migration, err := sqlStore.GetIdentityMigration(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IdentityMigrationStateComplete, migration.State)
	})

	t.Run("failed may be re-triggered", func(t *testing.T) {
		failedProject := createTestProject(t, sqlStore)

		ok, err := sqlStore.TryTransitionIdentityMigration(failedProject.ID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = sqlStore.TryTransitionIdentityMigration(failedProject.ID, []model.IdentityMigrationState{model.IdentityMigrationStateInProgress}, model.IdentityMigrationStateFailed)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = sqlStore.TryTransitionIdentityMigration(failedProject.ID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestIdentityMigrationLocks(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)

	locked, err := sqlStore.LockIdentityMigration(project.ID, "instance1")
	require.NoError(t, err)
	assert.True(t, locked)

	t.Run("second lock is rejected", func(t *testing.T) {
		locked, err := sqlStore.LockIdentityMigration(project.ID, "instance2")
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("unlock by other locker is rejected", func(t *testing.T) {
		unlocked, err := sqlStore.UnlockIdentityMigration(project.ID, "instance2", false)
		require.NoError(t, err)
		assert.False(t, unlocked)
	})

	t.Run("forced unlock succeeds", func(t *testing.T) {
		unlocked, err := sqlStore.UnlockIdentityMigration(project.ID, "instance2", true)
		require.NoError(t, err)
		assert.True(t, unlocked)
	})

	t.Run("expired locks are purged", func(t *testing.T) {
		locked, err := sqlStore.LockIdentityMigration(project.ID, "instance1")
		require.NoError(t, err)
		require.True(t, locked)

		purged, err := sqlStore.PurgeExpiredIdentityMigrationLocks(-1)
		require.NoError(t, err)
		assert.EqualValues(t, 1, purged)

		locked, err = sqlStore.LockIdentityMigration(project.ID, "instance2")
		require.NoError(t, err)
		assert.True(t, locked)
	})
}

func TestGetUnlockedIdentityMigrationsPendingWork(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	inProgress := createTestProject(t, sqlStore)
	notStarted := createTestProject(t, sqlStore)
	lockedProject := createTestProject(t, sqlStore)

	for _, projectID := range []string{inProgress.ID, lockedProject.ID} {
		ok, err := sqlStore.TryTransitionIdentityMigration(projectID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
		require.NoError(t, err)
		require.True(t, ok)
	}

	locked, err := sqlStore.LockIdentityMigration(lockedProject.ID, "instance1")
	require.NoError(t, err)
	require.True(t, locked)

	pendingWork, err := sqlStore.GetUnlockedIdentityMigrationsPendingWork()
	require.NoError(t, err)
	require.Len(t, pendingWork, 1)
	assert.Equal(t, inProgress.ID, pendingWork[0].ProjectID)

	// The NOT_STARTED project is stable and needs no supervision.
	migration, err := sqlStore.GetIdentityMigration(notStarted.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IdentityMigrationStateNotStarted, migration.State)
}

func TestResetIdentityMigration(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	defer store.CloseConnection(t, sqlStore)

	project := createTestProject(t, sqlStore)

	ok, err := sqlStore.TryTransitionIdentityMigration(project.ID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = sqlStore.TryTransitionIdentityMigration(project.ID, []model.IdentityMigrationState{model.IdentityMigrationStateInProgress}, model.IdentityMigrationStateComplete)
	require.NoError(t, err)
	require.True(t, ok)

	migration, err := sqlStore.ResetIdentityMigration(project.ID)
	require.NoError(t, err)
	require.NotNil(t, migration)
	assert.Equal(t, model.IdentityMigrationStateNotStarted, migration.State)
	assert.Equal(t, "", migration.Cursor)

	t.Run("unknown project", func(t *testing.T) {
		migration, err := sqlStore.ResetIdentityMigration("unknown")
		require.NoError(t, err)
		assert.Nil(t, migration)
	})
}
