package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Project is a single tenant workspace owning identities and feature flags.
// Projects are provisioned externally; this server only reads them and
// manages their identity migration.
type Project struct {
	ID             string
	Name           string
	EnableDynamoDB bool
	CreateAt       int64
	DeleteAt       int64
}

// CreateProjectRequest specifies the fields needed to register a project.
type CreateProjectRequest struct {
	Name           string
	EnableDynamoDB bool
}

// Validate validates the values of a project create request.
func (request *CreateProjectRequest) Validate() error {
	if request.Name == "" {
		return errors.New("project name is required")
	}

	return nil
}

// NewCreateProjectRequestFromReader will create a CreateProjectRequest from an
// io.Reader with JSON data.
func NewCreateProjectRequestFromReader(reader io.Reader) (*CreateProjectRequest, error) {
	var request CreateProjectRequest
	err := json.NewDecoder(reader).Decode(&request)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode create project request")
	}

	err = request.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid create project request")
	}

	return &request, nil
}

// NewProjectFromReader will create a Project from an io.Reader with JSON data.
func NewProjectFromReader(reader io.Reader) (*Project, error) {
	var project Project
	err := json.NewDecoder(reader).Decode(&project)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode project")
	}

	return &project, nil
}

// NewProjectsFromReader will create a slice of Projects from an io.Reader
// with JSON data.
func NewProjectsFromReader(reader io.Reader) ([]*Project, error) {
	projects := []*Project{}
	err := json.NewDecoder(reader).Decode(&projects)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode projects")
	}

	return projects, nil
}
