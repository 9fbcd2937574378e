package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Client is the programmatic interface to the flagsmith ops server API.
type Client struct {
	address    string
	headers    map[string]string
	httpClient *http.Client
}

// NewClient creates a client to the ops server at the given address.
func NewClient(address string) *Client {
	return &Client{
		address:    address,
		headers:    make(map[string]string),
		httpClient: &http.Client{},
	}
}

// NewClientWithHeaders creates a client to the ops server at the given
// address and uses the provided headers.
func NewClientWithHeaders(address string, headers map[string]string) *Client {
	return &Client{
		address:    address,
		headers:    headers,
		httpClient: &http.Client{},
	}
}

// closeBody ensures the Body of an http.Response is properly closed.
func closeBody(r *http.Response) {
	if r.Body != nil {
		_, _ = ioutil.ReadAll(r.Body)
		_ = r.Body.Close()
	}
}

func (c *Client) buildURL(urlPath string, args ...interface{}) string {
	return fmt.Sprintf("%s%s", c.address, fmt.Sprintf(urlPath, args...))
}

func (c *Client) doGet(u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) doPost(u string, request interface{}) (*http.Response, error) {
	return c.doWithBody(http.MethodPost, u, request)
}

func (c *Client) doDelete(u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) doWithBody(method string, u string, request interface{}) (*http.Response, error) {
	requestBytes := []byte{}
	if request != nil {
		var err error
		requestBytes, err = json.Marshal(request)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, u, bytes.NewReader(requestBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}

	return c.httpClient.Do(req)
}

// CreateProject requests the creation of a project from the configured server.
func (c *Client) CreateProject(request *CreateProjectRequest) (*Project, error) {
	resp, err := c.doPost(c.buildURL("/api/projects"), request)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewProjectFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetProjects fetches the list of projects from the configured server.
func (c *Client) GetProjects() ([]*Project, error) {
	resp, err := c.doGet(c.buildURL("/api/projects"))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewProjectsFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetProject fetches the given project from the configured server.
func (c *Client) GetProject(projectID string) (*Project, error) {
	resp, err := c.doGet(c.buildURL("/api/project/%s", projectID))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewProjectFromReader(resp.Body)
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// CreateIdentity stores a new identity within the given project.
func (c *Client) CreateIdentity(projectID string, request *CreateIdentityRequest) (*Identity, error) {
	resp, err := c.doPost(c.buildURL("/api/project/%s/identities", projectID), request)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewIdentityFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// TriggerIdentityMigration requests that the given project's identities be
// migrated into the secondary store. An ErrMigrationNotTriggerable error is
// returned along with the current, unchanged migration when the project is
// not in a triggerable state.
func (c *Client) TriggerIdentityMigration(projectID string) (*IdentityMigration, error) {
	resp, err := c.doPost(c.buildURL("/api/project/%s/identity-migration", projectID), nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return NewIdentityMigrationFromReader(resp.Body)
	case http.StatusConflict:
		migration, decodeErr := NewIdentityMigrationFromReader(resp.Body)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return migration, ErrMigrationNotTriggerable
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// ErrMigrationNotTriggerable indicates the server rejected a trigger request
// because the migration is already in progress or complete. It is a normal
// rejection, not a server failure.
var ErrMigrationNotTriggerable = errors.New("identity migration cannot be triggered in its current state")

// GetIdentityMigration fetches the migration status of the given project.
func (c *Client) GetIdentityMigration(projectID string) (*IdentityMigration, error) {
	resp, err := c.doGet(c.buildURL("/api/project/%s/identity-migration", projectID))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewIdentityMigrationFromReader(resp.Body)
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetIdentityMigrations fetches identity migrations matching the request.
func (c *Client) GetIdentityMigrations(request *GetIdentityMigrationsRequest) ([]*IdentityMigration, error) {
	u, err := url.Parse(c.buildURL("/api/identity-migrations"))
	if err != nil {
		return nil, err
	}
	request.ApplyToURL(u)

	resp, err := c.doGet(u.String())
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewIdentityMigrationsFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetProjectReports fetches the dashboard report of identity counts and
// migration statuses for every project.
func (c *Client) GetProjectReports() (map[string]*ProjectReport, error) {
	resp, err := c.doGet(c.buildURL("/api/projects/report"))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewProjectReportsFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// CreateWebhook requests the creation of a webhook from the configured server.
func (c *Client) CreateWebhook(request *CreateWebhookRequest) (*Webhook, error) {
	resp, err := c.doPost(c.buildURL("/api/webhooks"), request)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewWebhookFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetWebhooks fetches the list of webhooks from the configured server.
func (c *Client) GetWebhooks() ([]*Webhook, error) {
	resp, err := c.doGet(c.buildURL("/api/webhooks"))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewWebhooksFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// DeleteWebhook deletes the given webhook.
func (c *Client) DeleteWebhook(webhookID string) error {
	resp, err := c.doDelete(c.buildURL("/api/webhook/%s", webhookID))
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	default:
		return errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}
