package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AceFire6/flagsmith/internal/components"
	"github.com/AceFire6/flagsmith/model"
)

// initIdentityMigration registers identity migration endpoints on the given
// router.
func initIdentityMigration(apiRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	migrationRouter := apiRouter.PathPrefix("/project/{project}/identity-migration").Subrouter()
	migrationRouter.Handle("", addContext(handleTriggerIdentityMigration)).Methods("POST")
	migrationRouter.Handle("", addContext(handleGetIdentityMigration)).Methods("GET")

	migrationsRouter := apiRouter.PathPrefix("/identity-migrations").Subrouter()
	migrationsRouter.Handle("", addContext(handleGetIdentityMigrations)).Methods("GET")
}

// handleTriggerIdentityMigration starts copying the project's identities to
// the secondary store. The copy runs in the background; the request is
// acknowledged as soon as the migration is claimed. Triggering a migration
// that is already running is a conflict and echoes the running record, which
// makes retrying a trigger request safe.
func handleTriggerIdentityMigration(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["project"]
	c.Logger = c.Logger.
		WithField("action", "trigger-identity-migration").
		WithField("project", projectID)

	migration, err := components.TriggerIdentityMigration(c.Store, projectID)
	if err != nil {
		status := components.ErrToStatus(err)
		if status == http.StatusConflict {
			c.Logger.WithError(err).Warn("Identity migration already triggered")
			w.WriteHeader(http.StatusConflict)
			outputJSON(c, w, migration)
			return
		}
		c.Logger.WithError(err).Error("Failed to trigger identity migration")
		w.WriteHeader(status)
		return
	}

	c.Supervisor.Do()

	w.WriteHeader(http.StatusAccepted)
	outputJSON(c, w, migration)
}

func handleGetIdentityMigration(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["project"]
	c.Logger = c.Logger.WithField("project", projectID)

	migration, err := c.Store.GetIdentityMigration(projectID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query identity migration")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if migration == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, migration)
}

func handleGetIdentityMigrations(c *Context, w http.ResponseWriter, r *http.Request) {
	c.Logger = c.Logger.WithField("action", "list-identity-migrations")

	paging, err := parsePaging(r.URL)
	if err != nil {
		c.Logger.WithError(err).Error("failed to parse paging parameters")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var states []model.IdentityMigrationState
	state := parseString(r.URL, "state", "")
	if state != "" {
		if !model.IdentityMigrationState(state).Valid() {
			c.Logger.Errorf("invalid identity migration state %q", state)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		states = append(states, model.IdentityMigrationState(state))
	}

	migrations, err := c.Store.GetIdentityMigrations(&model.IdentityMigrationFilter{
		Paging: paging,
		States: states,
	})
	if err != nil {
		c.Logger.WithError(err).Error("failed to query identity migrations")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, migrations)
}
