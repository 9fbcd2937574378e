package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ProjectReport is a dashboard row for a single project: how many identities
// it holds in the relational store and where its migration stands.
type ProjectReport struct {
	ProjectID      string
	ProjectName    string
	IdentityCount  int64
	MigrationState IdentityMigrationState

	// CountUnavailable is set when the identity count lookup failed for this
	// project; the rest of the row is still valid.
	CountUnavailable bool
}

// TriggerEnabled reports whether the dashboard's migrate control should be
// active for this row. It is a pure projection of the migration state.
func (r *ProjectReport) TriggerEnabled() bool {
	return r.MigrationState == IdentityMigrationStateNotStarted ||
		r.MigrationState == IdentityMigrationStateFailed
}

// NewProjectReportsFromReader will create a map of ProjectReports keyed by
// project ID from an io.Reader with JSON data.
func NewProjectReportsFromReader(reader io.Reader) (map[string]*ProjectReport, error) {
	reports := map[string]*ProjectReport{}
	err := json.NewDecoder(reader).Decode(&reports)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode project reports")
	}

	return reports, nil
}
