package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

const (
	identityMigrationTable = "IdentityMigration"
)

var identityMigrationSelect sq.SelectBuilder

func init() {
	identityMigrationSelect = sq.
		Select("ProjectID",
			"State",
			"ResumeCursor",
			"SkippedRecords",
			"RequestAt",
			"StartAt",
			"CompleteAt",
			"LockAcquiredBy",
			"LockAcquiredAt",
		).
		From(identityMigrationTable)
}

type rawIdentityMigration struct {
	ProjectID      string
	State          model.IdentityMigrationState
	ResumeCursor   string
	SkippedRecords int64
	RequestAt      int64
	StartAt        int64
	CompleteAt     int64
	LockAcquiredBy *string
	LockAcquiredAt int64
}

func (r *rawIdentityMigration) toIdentityMigration() *model.IdentityMigration {
	return &model.IdentityMigration{
		ProjectID:      r.ProjectID,
		State:          r.State,
		Cursor:         r.ResumeCursor,
		SkippedRecords: r.SkippedRecords,
		RequestAt:      r.RequestAt,
		StartAt:        r.StartAt,
		CompleteAt:     r.CompleteAt,
		LockAcquiredBy: r.LockAcquiredBy,
		LockAcquiredAt: r.LockAcquiredAt,
	}
}

// createIdentityMigration inserts the single migration row a project owns
// for its lifetime, in the initial state.
func (sqlStore *SQLStore) createIdentityMigration(projectID string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Insert(identityMigrationTable).
		SetMap(map[string]interface{}{
			"ProjectID":      projectID,
			"State":          model.IdentityMigrationStateNotStarted,
			"ResumeCursor":   "",
			"SkippedRecords": 0,
			"RequestAt":      0,
			"StartAt":        0,
			"CompleteAt":     0,
			"LockAcquiredBy": nil,
			"LockAcquiredAt": 0,
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create identity migration")
	}

	return nil
}

// GetIdentityMigration fetches the migration status row of the given project.
func (sqlStore *SQLStore) GetIdentityMigration(projectID string) (*model.IdentityMigration, error) {
	var raw rawIdentityMigration
	err := sqlStore.getBuilder(sqlStore.db, &raw, identityMigrationSelect.Where("ProjectID = ?", projectID))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to query for identity migration")
	}

	return raw.toIdentityMigration(), nil
}

// GetIdentityMigrations fetches identity migrations matching the filter.
func (sqlStore *SQLStore) GetIdentityMigrations(filter *model.IdentityMigrationFilter) ([]*model.IdentityMigration, error) {
	builder := identityMigrationSelect.OrderBy("RequestAt DESC")
	if filter.PerPage != model.AllPerPage {
		builder = builder.
			Limit(uint64(filter.PerPage)).
			Offset(uint64(filter.Page * filter.PerPage))
	}
	if len(filter.ProjectIDs) > 0 {
		builder = builder.Where(sq.Eq{"ProjectID": filter.ProjectIDs})
	}
	if len(filter.States) > 0 {
		builder = builder.Where(sq.Eq{"State": filter.States})
	}

	var rawMigrations []*rawIdentityMigration
	err := sqlStore.selectBuilder(sqlStore.db, &rawMigrations, builder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query for identity migrations")
	}

	migrations := make([]*model.IdentityMigration, 0, len(rawMigrations))
	for _, raw := range rawMigrations {
		migrations = append(migrations, raw.toIdentityMigration())
	}

	return migrations, nil
}

// GetUnlockedIdentityMigrationsPendingWork returns unlocked identity
// migrations in a state the supervisor needs to drive forward.
func (sqlStore *SQLStore) GetUnlockedIdentityMigrationsPendingWork() ([]*model.IdentityMigration, error) {
	builder := identityMigrationSelect.
		Where(sq.Eq{
			"State": model.AllIdentityMigrationStatesPendingWork,
		}).
		Where("LockAcquiredAt = 0").
		OrderBy("RequestAt ASC")

	var rawMigrations []*rawIdentityMigration
	err := sqlStore.selectBuilder(sqlStore.db, &rawMigrations, builder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query for identity migrations pending work")
	}

	migrations := make([]*model.IdentityMigration, 0, len(rawMigrations))
	for _, raw := range rawMigrations {
		migrations = append(migrations, raw.toIdentityMigration())
	}

	return migrations, nil
}

// TryTransitionIdentityMigration attempts to move the given project's
// migration from one of the given states to the given state as a single
// atomic compare-and-set. It returns false without error when the persisted
// state did not match; this is a normal rejection, not a failure, and is the
// sole mechanism preventing two simultaneous runs for the same project.
func (sqlStore *SQLStore) TryTransitionIdentityMigration(projectID string, from []model.IdentityMigrationState, to model.IdentityMigrationState) (bool, error) {
	fields := map[string]interface{}{
		"State": to,
	}
	if to == model.IdentityMigrationStateInProgress {
		fields["RequestAt"] = GetMillis()
		fields["CompleteAt"] = 0
	}
	if to == model.IdentityMigrationStateComplete {
		fields["CompleteAt"] = GetMillis()
		fields["ResumeCursor"] = ""
	}

	result, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(identityMigrationTable).
		SetMap(fields).
		Where("ProjectID = ?", projectID).
		Where(sq.Eq{"State": from}),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to transition identity migration")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to check rows affected by transition")
	}

	return rows == 1, nil
}

// UpdateIdentityMigrationProgress persists the cursor, skipped record count
// and start timestamp of an in-flight migration run.
func (sqlStore *SQLStore) UpdateIdentityMigrationProgress(migration *model.IdentityMigration) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(identityMigrationTable).
		SetMap(map[string]interface{}{
			"ResumeCursor":   migration.Cursor,
			"SkippedRecords": migration.SkippedRecords,
			"StartAt":        migration.StartAt,
		}).
		Where("ProjectID = ?", migration.ProjectID),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update identity migration progress")
	}

	return nil
}

// ResetIdentityMigration forces the given project's migration back to the
// initial state, clearing the cursor. This is the administrative override
// for re-running a completed migration; it is not reachable through the
// normal trigger path.
func (sqlStore *SQLStore) ResetIdentityMigration(projectID string) (*model.IdentityMigration, error) {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(identityMigrationTable).
		SetMap(map[string]interface{}{
			"State":          model.IdentityMigrationStateNotStarted,
			"ResumeCursor":   "",
			"SkippedRecords": 0,
			"RequestAt":      0,
			"StartAt":        0,
			"CompleteAt":     0,
			"LockAcquiredBy": nil,
			"LockAcquiredAt": 0,
		}).
		Where("ProjectID = ?", projectID),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reset identity migration")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to check rows affected by reset")
	}
	if rows == 0 {
		return nil, nil
	}

	return sqlStore.GetIdentityMigration(projectID)
}

// LockIdentityMigration marks the identity migration as locked for exclusive
// use by the caller.
func (sqlStore *SQLStore) LockIdentityMigration(projectID, lockerID string) (bool, error) {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(identityMigrationTable).
		SetMap(map[string]interface{}{
			"LockAcquiredBy": lockerID,
			"LockAcquiredAt": GetMillis(),
		}).
		Where("ProjectID = ?", projectID).
		Where("LockAcquiredAt = 0"),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to lock identity migration")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to check rows affected by lock")
	}

	return rows == 1, nil
}

// UnlockIdentityMigration releases a lock previously acquired against a caller.
func (sqlStore *SQLStore) UnlockIdentityMigration(projectID, lockerID string, force bool) (bool, error) {
	builder := sq.
		Update(identityMigrationTable).
		SetMap(map[string]interface{}{
			"LockAcquiredBy": nil,
			"LockAcquiredAt": 0,
		}).
		Where("ProjectID = ?", projectID)
	if force {
		builder = builder.Where("LockAcquiredAt <> 0")
	} else {
		builder = builder.Where("LockAcquiredBy = ?", lockerID)
	}

	result, err := sqlStore.execBuilder(sqlStore.db, builder)
	if err != nil {
		return false, errors.Wrap(err, "failed to unlock identity migration")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to check rows affected by unlock")
	}

	return rows == 1, nil
}

// PurgeExpiredIdentityMigrationLocks releases locks held longer than the
// given number of milliseconds. A dead worker's claim expires this way,
// leaving its IN_PROGRESS migration claimable again.
func (sqlStore *SQLStore) PurgeExpiredIdentityMigrationLocks(ttlMillis int64) (int64, error) {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(identityMigrationTable).
		SetMap(map[string]interface{}{
			"LockAcquiredBy": nil,
			"LockAcquiredAt": 0,
		}).
		Where("LockAcquiredAt <> 0").
		Where("LockAcquiredAt < ?", GetMillis()-ttlMillis),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge expired identity migration locks")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to check rows affected by lock purge")
	}

	return rows, nil
}
