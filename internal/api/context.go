package api

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/AceFire6/flagsmith/model"
)

// Supervisor describes the interface to notify the background jobs of an
// actionable change.
type Supervisor interface {
	Do() error
}

// Store describes the interface required to persist changes made via API
// requests.
type Store interface {
	CreateProject(project *model.Project) error
	GetProject(id string) (*model.Project, error)
	GetProjects(paging model.Paging) ([]*model.Project, error)
	DeleteProject(id string) error

	CreateIdentity(identity *model.Identity) error
	GetIdentityCount(projectID string) (int64, error)
	GetIdentityCounts() (map[string]int64, error)

	GetIdentityMigration(projectID string) (*model.IdentityMigration, error)
	GetIdentityMigrations(filter *model.IdentityMigrationFilter) ([]*model.IdentityMigration, error)
	TryTransitionIdentityMigration(projectID string, from []model.IdentityMigrationState, to model.IdentityMigrationState) (bool, error)

	CreateWebhook(webhook *model.Webhook) error
	GetWebhook(id string) (*model.Webhook, error)
	GetWebhooks(filter *model.WebhookFilter) ([]*model.Webhook, error)
	DeleteWebhook(id string) error
}

// Context provides the API with all necessary data and interfaces for
// responding to requests.
//
// It is cloned before each request, allowing per-request changes such as
// logger annotations.
type Context struct {
	Store       Store
	Supervisor  Supervisor
	RequestID   string
	Environment string
	Logger      log.FieldLogger
}

// Clone creates a shallow copy of context, allowing clones to apply
// per-request changes.
func (c *Context) Clone() *Context {
	return &Context{
		Store:       c.Store,
		Supervisor:  c.Supervisor,
		Environment: c.Environment,
		Logger:      c.Logger,
	}
}

type contextHandlerFunc func(c *Context, w http.ResponseWriter, r *http.Request)

type contextHandler struct {
	context *Context
	handler contextHandlerFunc
}

func (h contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	context := h.context.Clone()
	context.RequestID = model.NewID()
	context.Logger = context.Logger.WithFields(log.Fields{
		"path":    r.URL.Path,
		"request": context.RequestID,
	})

	h.handler(context, w, r)
}

func newContextHandler(context *Context, handler contextHandlerFunc) *contextHandler {
	return &contextHandler{
		context: context,
		handler: handler,
	}
}
