package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AceFire6/flagsmith/model"
)

// initWebhook registers webhook endpoints on the given router.
func initWebhook(apiRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	webhooksRouter := apiRouter.PathPrefix("/webhooks").Subrouter()
	webhooksRouter.Handle("", addContext(handleCreateWebhook)).Methods("POST")
	webhooksRouter.Handle("", addContext(handleGetWebhooks)).Methods("GET")

	webhookRouter := apiRouter.PathPrefix("/webhook/{webhook}").Subrouter()
	webhookRouter.Handle("", addContext(handleGetWebhook)).Methods("GET")
	webhookRouter.Handle("", addContext(handleDeleteWebhook)).Methods("DELETE")
}

func handleCreateWebhook(c *Context, w http.ResponseWriter, r *http.Request) {
	c.Logger = c.Logger.WithField("action", "create-webhook")

	createWebhookRequest, err := model.NewCreateWebhookRequestFromReader(r.Body)
	if err != nil {
		c.Logger.WithError(err).Error("failed to decode request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	webhook := &model.Webhook{
		OwnerID: createWebhookRequest.OwnerID,
		URL:     createWebhookRequest.URL,
	}

	err = c.Store.CreateWebhook(webhook)
	if err != nil {
		c.Logger.WithError(err).Error("failed to create webhook")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, webhook)
}

func handleGetWebhooks(c *Context, w http.ResponseWriter, r *http.Request) {
	c.Logger = c.Logger.WithField("action", "list-webhooks")

	paging, err := parsePaging(r.URL)
	if err != nil {
		c.Logger.WithError(err).Error("failed to parse paging parameters")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	webhooks, err := c.Store.GetWebhooks(&model.WebhookFilter{
		Paging:  paging,
		OwnerID: parseString(r.URL, "owner", ""),
	})
	if err != nil {
		c.Logger.WithError(err).Error("failed to query webhooks")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, webhooks)
}

func handleGetWebhook(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	webhookID := vars["webhook"]
	c.Logger = c.Logger.WithField("webhook", webhookID)

	webhook, err := c.Store.GetWebhook(webhookID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query webhook")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if webhook == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, webhook)
}

func handleDeleteWebhook(c *Context, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	webhookID := vars["webhook"]
	c.Logger = c.Logger.
		WithField("action", "delete-webhook").
		WithField("webhook", webhookID)

	webhook, err := c.Store.GetWebhook(webhookID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to query webhook")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if webhook == nil || webhook.IsDeleted() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	err = c.Store.DeleteWebhook(webhookID)
	if err != nil {
		c.Logger.WithError(err).Error("failed to delete webhook")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
