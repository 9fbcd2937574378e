package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AceFire6/flagsmith/internal/components"
	"github.com/AceFire6/flagsmith/model"
)

// initProject registers project endpoints on the given router.
func initProject(apiRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	projectsRouter := apiRouter.PathPrefix("/projects").Subrouter()
	projectsRouter.Handle("", addContext(handleCreateProject)).Methods("POST")
	projectsRouter.Handle("", addContext(handleGetProjects)).Methods("GET")
	projectsRouter.Handle("/report", addContext(handleGetProjectReports)).Methods("GET")

	projectRouter := apiRouter.PathPrefix("/project/{project}").Subrouter()
	projectRouter.Handle("", addContext(handleGetProject)).Methods("GET")
	projectRouter.Handle("", addContext(handleDeleteProject)).Methods("DELETE")
	projectRouter.Handle("/identities", addContext(handleCreateIdentity)).Methods("POST")
}

func handleCreateProject(c *Context, w http.ResponseWriter, r *http.Request) {
	c.Logger = c.Logger.WithField("action", "create-project")

	createProjectRequest, err := model.NewCreateProjectRequestFromReader(r.Body)
	if err != nil {
		c.Logger.WithError(err).Error("failed to decode request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	project := &model.Project{
		Name:           createProjectRequest.Name,
		EnableDynamoDB: createProjectRequest.EnableDynamoDB,
	}

	err = c.Store.CreateProject(project)
	if err != nil {
		c.Logger.WithError(err).Error("failed to create project")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, project)
}

func handleGetProjects(c *Context, w http.ResponseWriter, r *http.Request) {
	c.Logger = c.Logger.WithField("action", "list-projects")

	paging, err := parsePaging(r.URL)
	if err != nil {
		c.Logger.WithError(err).Error("failed to parse paging parameters")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	projects, err := c.Store.GetProjects(paging)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query projects")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, projects)
}

func handleGetProject(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["project"]
	c.Logger = c.Logger.WithField("project", projectID)

	project, err := c.Store.GetProject(projectID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query project")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if project == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, project)
}

func handleDeleteProject(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["project"]
	c.Logger = c.Logger.
		WithField("action", "delete-project").
		WithField("project", projectID)

	project, err := c.Store.GetProject(projectID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query project")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if project == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	err = c.Store.DeleteProject(projectID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to delete project")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func handleCreateIdentity(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["project"]
	c.Logger = c.Logger.
		WithField("action", "create-identity").
		WithField("project", projectID)

	createIdentityRequest, err := model.NewCreateIdentityRequestFromReader(r.Body)
	if err != nil {
		c.Logger.WithError(err).Error("failed to decode request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	project, err := c.Store.GetProject(projectID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query project")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if project == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	identity := &model.Identity{
		ProjectID:     projectID,
		Identifier:    createIdentityRequest.Identifier,
		Traits:        createIdentityRequest.Traits,
		FlagOverrides: createIdentityRequest.FlagOverrides,
	}
	if err = identity.Validate(); err != nil {
		c.Logger.WithError(err).Error("invalid identity")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err = c.Store.CreateIdentity(identity)
	if err != nil {
		c.Logger.WithError(err).Error("failed to create identity")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, identity)
}

func handleGetProjectReports(c *Context, w http.ResponseWriter, r *http.Request) {
	c.Logger = c.Logger.WithField("action", "project-reports")

	reports, err := components.GetProjectReports(c.Store, c.Logger)
	if err != nil {
		c.Logger.WithError(err).Error("failed to build project reports")
		w.WriteHeader(components.ErrToStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, reports)
}
