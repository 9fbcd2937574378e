package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// IdentityMigrationState is the persisted status of a project's identity
// migration into the secondary store.
type IdentityMigrationState string

const (
	// IdentityMigrationStateNotStarted indicates the project's identities
	// have never been migrated.
	IdentityMigrationStateNotStarted IdentityMigrationState = "NOT_STARTED"
	// IdentityMigrationStateInProgress indicates a migration run currently
	// owns the project's identity copy.
	IdentityMigrationStateInProgress IdentityMigrationState = "IN_PROGRESS"
	// IdentityMigrationStateComplete indicates every identity was copied.
	// No transition leaves this state through the normal trigger path.
	IdentityMigrationStateComplete IdentityMigrationState = "COMPLETE"
	// IdentityMigrationStateFailed indicates the last run aborted. A failed
	// migration may be re-triggered.
	IdentityMigrationStateFailed IdentityMigrationState = "FAILED"
)

// AllIdentityMigrationStates enumerates every valid migration state.
var AllIdentityMigrationStates = []IdentityMigrationState{
	IdentityMigrationStateNotStarted,
	IdentityMigrationStateInProgress,
	IdentityMigrationStateComplete,
	IdentityMigrationStateFailed,
}

// AllIdentityMigrationStatesPendingWork is a list of all migration states
// that the supervisor will attempt to transition towards stable on the next
// "tick".
var AllIdentityMigrationStatesPendingWork = []IdentityMigrationState{
	IdentityMigrationStateInProgress,
}

// IdentityMigrationTriggerableStates lists the states a normal trigger
// request may transition out of.
var IdentityMigrationTriggerableStates = []IdentityMigrationState{
	IdentityMigrationStateNotStarted,
	IdentityMigrationStateFailed,
}

// IdentityMigration tracks the migration of a single project's identities
// from the relational store into DynamoDB. Exactly one row exists per
// project for its entire lifetime.
type IdentityMigration struct {
	ProjectID string
	State     IdentityMigrationState

	// Cursor is the identity ID the next page fetch resumes after. Retained
	// on failure so a re-trigger continues where the last run stopped.
	Cursor         string
	SkippedRecords int64

	RequestAt  int64
	StartAt    int64
	CompleteAt int64

	LockAcquiredBy *string
	LockAcquiredAt int64
}

// CanBeTriggered determines whether a normal trigger request is allowed to
// start a run for this migration.
func (m *IdentityMigration) CanBeTriggered() bool {
	for _, state := range IdentityMigrationTriggerableStates {
		if m.State == state {
			return true
		}
	}
	return false
}

// Valid determines whether the value is one of the defined state tokens.
func (s IdentityMigrationState) Valid() bool {
	for _, state := range AllIdentityMigrationStates {
		if s == state {
			return true
		}
	}
	return false
}

// ValidState determines whether the migration carries one of the defined
// state tokens.
func (m *IdentityMigration) ValidState() bool {
	return m.State.Valid()
}

// NewIdentityMigrationFromReader will create an IdentityMigration from an
// io.Reader with JSON data.
func NewIdentityMigrationFromReader(reader io.Reader) (*IdentityMigration, error) {
	var migration IdentityMigration
	err := json.NewDecoder(reader).Decode(&migration)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode identity migration")
	}

	return &migration, nil
}

// NewIdentityMigrationsFromReader will create a slice of IdentityMigrations
// from an io.Reader with JSON data.
func NewIdentityMigrationsFromReader(reader io.Reader) ([]*IdentityMigration, error) {
	migrations := []*IdentityMigration{}
	err := json.NewDecoder(reader).Decode(&migrations)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode identity migrations")
	}

	return migrations, nil
}
