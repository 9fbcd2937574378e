package model

import (
	"net/url"
)

// GetIdentityMigrationsRequest describes the parameters to request a list of
// identity migrations.
type GetIdentityMigrationsRequest struct {
	Paging
	State string
}

// ApplyToURL modifies the given url to include query string parameters for the request.
func (request *GetIdentityMigrationsRequest) ApplyToURL(u *url.URL) {
	q := u.Query()
	q.Add("state", request.State)
	request.Paging.AddToQuery(q)

	u.RawQuery = q.Encode()
}

// IdentityMigrationFilter describes the parameters used to constrain a set
// of identity migrations.
type IdentityMigrationFilter struct {
	Paging
	ProjectIDs []string
	States     []IdentityMigrationState
}
