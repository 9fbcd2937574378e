package identitystore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

// identitySQLStore abstracts the relational store operations required by the
// adapter.
type identitySQLStore interface {
	GetIdentityCount(projectID string) (int64, error)
	GetIdentities(projectID, cursor string, perPage int) ([]*model.Identity, []string, string, error)
	CreateOrUpdateIdentity(identity *model.Identity) error
}

// SQLIdentityStore adapts the relational system of record to the
// IdentityStore contract. It is the source side of every migration.
type SQLIdentityStore struct {
	store identitySQLStore
}

// NewSQLIdentityStore creates an adapter over the given relational store.
func NewSQLIdentityStore(store identitySQLStore) *SQLIdentityStore {
	return &SQLIdentityStore{store: store}
}

// Count returns the number of identities the project holds in the
// relational store.
func (s *SQLIdentityStore) Count(ctx context.Context, projectID string) (int64, error) {
	count, err := s.store.GetIdentityCount(projectID)
	if err != nil {
		return 0, NewTransientError(errors.Wrap(err, "failed to count identities"))
	}

	return count, nil
}

// List returns one page of the project's identities from the relational
// store. Rows whose stored data cannot be decoded are reported as malformed
// rather than failing the page.
func (s *SQLIdentityStore) List(ctx context.Context, projectID, cursor string, perPage int) (*Page, error) {
	identities, malformed, nextCursor, err := s.store.GetIdentities(projectID, cursor, perPage)
	if err != nil {
		return nil, NewTransientError(errors.Wrap(err, "failed to list identities"))
	}

	return &Page{
		Identities: identities,
		Malformed:  malformed,
		NextCursor: nextCursor,
	}, nil
}

// WriteBatch upserts the given identities into the relational store, keyed
// by identifier within the project.
func (s *SQLIdentityStore) WriteBatch(ctx context.Context, projectID string, identities []*model.Identity) error {
	for _, identity := range identities {
		if err := identity.Validate(); err != nil {
			return NewDataError(identity.Identifier, err)
		}
		identity.ProjectID = projectID
		err := s.store.CreateOrUpdateIdentity(identity)
		if err != nil {
			return NewTransientError(errors.Wrap(err, "failed to write identity"))
		}
	}

	return nil
}
