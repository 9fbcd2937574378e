// Package identitystore provides a uniform interface over the two backends
// holding identity data: the relational system of record and the DynamoDB
// table identities are migrated into.
package identitystore

import (
	"context"

	"github.com/AceFire6/flagsmith/model"
)

// Page is one page of a project's identities. Records that could not be
// decoded from the backend are reported in Malformed by identifier rather
// than failing the page; the caller decides how many of those to tolerate.
type Page struct {
	Identities []*model.Identity
	Malformed  []string
	NextCursor string
}

// IdentityStore is the capability set callers depend on; no caller sees
// backend-specific types.
type IdentityStore interface {
	// Count returns the number of identities the backend holds for the
	// given project.
	Count(ctx context.Context, projectID string) (int64, error)

	// List returns one page of the project's identities, resuming after the
	// given cursor. An empty cursor starts from the beginning; the page's
	// cursor is empty once the sequence is exhausted.
	List(ctx context.Context, projectID, cursor string, perPage int) (*Page, error)

	// WriteBatch stores the given identities. Writes are upserts keyed by
	// the identity's identifier within its project, so retrying a batch is
	// safe and never duplicates records.
	WriteBatch(ctx context.Context, projectID string, identities []*model.Identity) error
}
