package api

import (
	"github.com/gorilla/mux"
)

// Register registers the API endpoint routings and handlers.
func Register(rootRouter *mux.Router, context *Context) {
	apiRouter := rootRouter.PathPrefix("/api").Subrouter()

	initProject(apiRouter, context)
	initIdentityMigration(apiRouter, context)
	initWebhook(apiRouter, context)
}
