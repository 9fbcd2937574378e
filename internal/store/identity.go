package store

import (
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

const (
	identityTable = "Identity"
)

var identitySelect sq.SelectBuilder

func init() {
	identitySelect = sq.
		Select("ID", "ProjectID", "Identifier", "TraitsRaw", "FlagOverridesRaw", "CreateAt").
		From(identityTable)
}

type rawIdentity struct {
	ID               string
	ProjectID        string
	Identifier       string
	TraitsRaw        []byte
	FlagOverridesRaw []byte
	CreateAt         int64
}

type rawIdentities []*rawIdentity

func (r *rawIdentity) toIdentity() (*model.Identity, error) {
	identity := &model.Identity{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Identifier: r.Identifier,
		CreateAt:   r.CreateAt,
	}

	if len(r.TraitsRaw) > 0 {
		err := json.Unmarshal(r.TraitsRaw, &identity.Traits)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal identity traits")
		}
	}
	if len(r.FlagOverridesRaw) > 0 {
		err := json.Unmarshal(r.FlagOverridesRaw, &identity.FlagOverrides)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal identity flag overrides")
		}
	}

	return identity, nil
}

// toIdentities decodes the raw rows, setting aside rows whose stored JSON is
// corrupt. A bad row is returned by identifier instead of poisoning the rest
// of its page.
func (r *rawIdentities) toIdentities() ([]*model.Identity, []string) {
	if r == nil {
		return []*model.Identity{}, nil
	}
	identities := make([]*model.Identity, 0, len(*r))
	var malformed []string

	for _, raw := range *r {
		identity, err := raw.toIdentity()
		if err != nil {
			malformed = append(malformed, raw.Identifier)
			continue
		}
		identities = append(identities, identity)
	}
	return identities, malformed
}

// CreateIdentity records the given identity to the database, assigning it a
// unique ID.
func (sqlStore *SQLStore) CreateIdentity(identity *model.Identity) error {
	identity.ID = model.NewID()
	identity.CreateAt = GetMillis()

	traitsRaw, err := json.Marshal(identity.Traits)
	if err != nil {
		return errors.Wrap(err, "failed to marshal identity traits")
	}
	flagOverridesRaw, err := json.Marshal(identity.FlagOverrides)
	if err != nil {
		return errors.Wrap(err, "failed to marshal identity flag overrides")
	}

	_, err = sqlStore.execBuilder(sqlStore.db, sq.
		Insert(identityTable).
		SetMap(map[string]interface{}{
			"ID":               identity.ID,
			"ProjectID":        identity.ProjectID,
			"Identifier":       identity.Identifier,
			"TraitsRaw":        traitsRaw,
			"FlagOverridesRaw": flagOverridesRaw,
			"CreateAt":         identity.CreateAt,
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create identity")
	}

	return nil
}

// CreateOrUpdateIdentity writes the given identity, replacing the traits and
// flag overrides of an existing row with the same project and identifier. The
// existing row keeps its ID and creation time.
func (sqlStore *SQLStore) CreateOrUpdateIdentity(identity *model.Identity) error {
	identity.ID = model.NewID()
	identity.CreateAt = GetMillis()

	traitsRaw, err := json.Marshal(identity.Traits)
	if err != nil {
		return errors.Wrap(err, "failed to marshal identity traits")
	}
	flagOverridesRaw, err := json.Marshal(identity.FlagOverrides)
	if err != nil {
		return errors.Wrap(err, "failed to marshal identity flag overrides")
	}

	_, err = sqlStore.execBuilder(sqlStore.db, sq.
		Insert(identityTable).
		SetMap(map[string]interface{}{
			"ID":               identity.ID,
			"ProjectID":        identity.ProjectID,
			"Identifier":       identity.Identifier,
			"TraitsRaw":        traitsRaw,
			"FlagOverridesRaw": flagOverridesRaw,
			"CreateAt":         identity.CreateAt,
		}).
		Suffix("ON CONFLICT (ProjectID, Identifier) DO UPDATE SET TraitsRaw = excluded.TraitsRaw, FlagOverridesRaw = excluded.FlagOverridesRaw"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create or update identity")
	}

	return nil
}

// GetIdentity fetches the given identity by ID.
func (sqlStore *SQLStore) GetIdentity(id string) (*model.Identity, error) {
	var raw rawIdentity
	err := sqlStore.getBuilder(sqlStore.db, &raw, identitySelect.Where("ID = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to query for identity")
	}

	return raw.toIdentity()
}

// GetIdentities fetches a page of a project's identities ordered by ID,
// resuming after the given cursor. An empty cursor starts from the beginning.
// The returned cursor resumes after the last row of the page; it is empty
// once the project's identities are exhausted. Rows with undecodable trait or
// flag override data are returned by identifier instead of failing the page.
func (sqlStore *SQLStore) GetIdentities(projectID, cursor string, perPage int) ([]*model.Identity, []string, string, error) {
	builder := identitySelect.
		Where("ProjectID = ?", projectID).
		OrderBy("ID ASC").
		Limit(uint64(perPage))
	if cursor != "" {
		builder = builder.Where("ID > ?", cursor)
	}

	var rawIdentities rawIdentities
	err := sqlStore.selectBuilder(sqlStore.db, &rawIdentities, builder)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed to query for identities")
	}

	identities, malformed := rawIdentities.toIdentities()

	// The cursor advances over every fetched row, malformed ones included,
	// so a bad row cannot stall pagination.
	nextCursor := ""
	if len(rawIdentities) == perPage {
		nextCursor = rawIdentities[len(rawIdentities)-1].ID
	}

	return identities, malformed, nextCursor, nil
}

// GetIdentityCount returns the number of identities belonging to the given
// project.
func (sqlStore *SQLStore) GetIdentityCount(projectID string) (int64, error) {
	var totalResult countResult
	builder := sq.
		Select("Count(*) AS Count").
		From(identityTable).
		Where("ProjectID = ?", projectID)
	err := sqlStore.selectBuilder(sqlStore.db, &totalResult, builder)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count identities")
	}

	return totalResult.value()
}

type identityCountRow struct {
	ProjectID string
	Count     int64
}

// GetIdentityCounts returns the number of identities per project for every
// project in a single query. Projects without identities are absent from the
// returned map.
func (sqlStore *SQLStore) GetIdentityCounts() (map[string]int64, error) {
	builder := sq.
		Select("ProjectID", "Count(*) AS Count").
		From(identityTable).
		GroupBy("ProjectID")

	var rows []*identityCountRow
	err := sqlStore.selectBuilder(sqlStore.db, &rows, builder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count identities per project")
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ProjectID] = row.Count
	}

	return counts, nil
}
