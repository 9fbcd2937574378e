package components_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/internal/components"
	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

type mockReportStore struct {
	projects   []*model.Project
	counts     map[string]int64
	countsErr  error
	migrations []*model.IdentityMigration
}

func (s *mockReportStore) GetProjects(paging model.Paging) ([]*model.Project, error) {
	return s.projects, nil
}

func (s *mockReportStore) GetIdentityCounts() (map[string]int64, error) {
	return s.counts, s.countsErr
}

func (s *mockReportStore) GetIdentityMigrations(filter *model.IdentityMigrationFilter) ([]*model.IdentityMigration, error) {
	return s.migrations, nil
}

func TestGetProjectReports(t *testing.T) {
	logger := testlib.MakeLogger(t)

	t.Run("joins counts and migration states", func(t *testing.T) {
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)

		project1 := testlib.CreateMigratableProject(t, sqlStore)
		project2 := testlib.CreateMigratableProject(t, sqlStore)
		testlib.CreateIdentities(t, sqlStore, project1.ID, 3)

		_, err := components.TriggerIdentityMigration(sqlStore, project2.ID)
		require.NoError(t, err)

		reports, err := components.GetProjectReports(sqlStore, logger)
		require.NoError(t, err)
		require.Len(t, reports, 2)

		report1 := reports[project1.ID]
		require.NotNil(t, report1)
		assert.Equal(t, int64(3), report1.IdentityCount)
		assert.Equal(t, model.IdentityMigrationStateNotStarted, report1.MigrationState)
		assert.False(t, report1.CountUnavailable)
		assert.True(t, report1.TriggerEnabled())

		report2 := reports[project2.ID]
		require.NotNil(t, report2)
		assert.Equal(t, int64(0), report2.IdentityCount)
		assert.Equal(t, model.IdentityMigrationStateInProgress, report2.MigrationState)
		assert.False(t, report2.TriggerEnabled())
	})

	t.Run("failing counts degrade rows instead of failing the report", func(t *testing.T) {
		mockStore := &mockReportStore{
			projects: []*model.Project{
				{ID: "project-1", Name: "one"},
			},
			countsErr: errors.New("count query timed out"),
			migrations: []*model.IdentityMigration{
				{ProjectID: "project-1", State: model.IdentityMigrationStateComplete},
			},
		}

		reports, err := components.GetProjectReports(mockStore, logger)
		require.NoError(t, err)
		require.Len(t, reports, 1)

		report := reports["project-1"]
		require.NotNil(t, report)
		assert.True(t, report.CountUnavailable)
		assert.Equal(t, int64(0), report.IdentityCount)
		assert.Equal(t, model.IdentityMigrationStateComplete, report.MigrationState)
	})

	t.Run("no projects yields an empty report", func(t *testing.T) {
		sqlStore := store.MakeTestSQLStore(t, logger)
		defer store.CloseConnection(t, sqlStore)

		reports, err := components.GetProjectReports(sqlStore, logger)
		require.NoError(t, err)
		assert.Empty(t, reports)
	})
}
