package components

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/AceFire6/flagsmith/model"
)

type projectReportStore interface {
	GetProjects(paging model.Paging) ([]*model.Project, error)
	GetIdentityCounts() (map[string]int64, error)
	GetIdentityMigrations(filter *model.IdentityMigrationFilter) ([]*model.IdentityMigration, error)
}

// GetProjectReports joins identity counts and migration statuses for all
// projects into one dashboard view. A failing count lookup degrades the
// affected rows instead of failing the whole report.
func GetProjectReports(store projectReportStore, logger log.FieldLogger) (map[string]*model.ProjectReport, error) {
	projects, err := store.GetProjects(model.AllPagesNotDeleted())
	if err != nil {
		return nil, ErrWrap(http.StatusInternalServerError, err, "failed to get projects")
	}

	migrations, err := store.GetIdentityMigrations(&model.IdentityMigrationFilter{Paging: model.AllPagesNotDeleted()})
	if err != nil {
		return nil, ErrWrap(http.StatusInternalServerError, err, "failed to get identity migrations")
	}
	migrationsByProject := make(map[string]*model.IdentityMigration, len(migrations))
	for _, migration := range migrations {
		migrationsByProject[migration.ProjectID] = migration
	}

	countsAvailable := true
	counts, err := store.GetIdentityCounts()
	if err != nil {
		logger.WithError(err).Warn("Failed to get identity counts; reporting counts as unavailable")
		countsAvailable = false
	}

	reports := make(map[string]*model.ProjectReport, len(projects))
	for _, project := range projects {
		report := &model.ProjectReport{
			ProjectID:        project.ID,
			ProjectName:      project.Name,
			CountUnavailable: !countsAvailable,
		}
		if countsAvailable {
			// Projects with no identities have no row in the counts map.
			report.IdentityCount = counts[project.ID]
		}
		if migration, found := migrationsByProject[project.ID]; found {
			report.MigrationState = migration.State
		} else {
			report.MigrationState = model.IdentityMigrationStateNotStarted
		}
		reports[project.ID] = report
	}

	return reports, nil
}
