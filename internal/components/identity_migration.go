package components

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

type identityMigrationTriggerStore interface {
	GetProject(id string) (*model.Project, error)
	GetIdentityMigration(projectID string) (*model.IdentityMigration, error)
	TryTransitionIdentityMigration(projectID string, from []model.IdentityMigrationState, to model.IdentityMigrationState) (bool, error)
}

// TriggerIdentityMigration moves the project's identity migration into the
// in progress state so a supervisor picks it up. When the migration is not
// in a triggerable state the current record is returned along with a
// conflict error, so the caller can show what is already running.
func TriggerIdentityMigration(store identityMigrationTriggerStore, projectID string) (*model.IdentityMigration, error) {
	project, err := store.GetProject(projectID)
	if err != nil {
		return nil, ErrWrap(http.StatusInternalServerError, err, "failed to get project")
	}
	if project == nil {
		return nil, NewErr(http.StatusNotFound, errors.Errorf("project %s not found", projectID))
	}
	if !project.EnableDynamoDB {
		return nil, NewErr(http.StatusBadRequest, errors.Errorf("project %s does not have dynamo storage enabled", projectID))
	}

	transitioned, err := store.TryTransitionIdentityMigration(projectID, model.IdentityMigrationTriggerableStates, model.IdentityMigrationStateInProgress)
	if err != nil {
		return nil, ErrWrap(http.StatusInternalServerError, err, "failed to transition identity migration")
	}

	migration, err := store.GetIdentityMigration(projectID)
	if err != nil {
		return nil, ErrWrap(http.StatusInternalServerError, err, "failed to get identity migration")
	}
	if migration == nil {
		return nil, NewErr(http.StatusInternalServerError, errors.Errorf("identity migration for project %s not found", projectID))
	}

	if !transitioned {
		return migration, NewErr(http.StatusConflict, errors.Errorf("identity migration is already %s", migration.State))
	}

	return migration, nil
}
