// Package migrator copies a project's identities from one identity store to
// another in resumable pages.
package migrator

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AceFire6/flagsmith/internal/identitystore"
	"github.com/AceFire6/flagsmith/model"
)

const (
	// DefaultPageSize is the number of identities copied per page when the
	// caller does not set one.
	DefaultPageSize = 500

	// defaultAttempts bounds how often a failing read or write is retried
	// before the migration fails.
	defaultAttempts = 5

	defaultRetryDelay = 2 * time.Second
	maxRetryDelay     = time.Minute

	// skippedRecordsFloor is the number of malformed records tolerated
	// before the percentage threshold starts to apply. Small projects would
	// otherwise fail on a single bad record.
	skippedRecordsFloor = 10

	// skippedRecordsPercent is the share of seen records allowed to be
	// malformed before the migration is abandoned.
	skippedRecordsPercent = 5
)

// progressStore persists migration progress between pages.
type progressStore interface {
	UpdateIdentityMigrationProgress(migration *model.IdentityMigration) error
}

// Params tunes a Migrator. Zero values fall back to defaults.
type Params struct {
	PageSize   int
	Attempts   int
	RetryDelay time.Duration
	Clock      clock.Clock
}

// Migrator copies identities from a source store to a target store, one page
// at a time, persisting the cursor after every page so an interrupted run
// resumes where it stopped.
type Migrator struct {
	source identitystore.IdentityStore
	target identitystore.IdentityStore
	store  progressStore
	logger log.FieldLogger

	pageSize   int
	attempts   int
	retryDelay time.Duration
	clock      clock.Clock
}

// NewMigrator creates a Migrator copying from source to target, recording
// progress in the given store.
func NewMigrator(source, target identitystore.IdentityStore, store progressStore, logger log.FieldLogger, params Params) *Migrator {
	if params.PageSize <= 0 {
		params.PageSize = DefaultPageSize
	}
	if params.Attempts <= 0 {
		params.Attempts = defaultAttempts
	}
	if params.RetryDelay <= 0 {
		params.RetryDelay = defaultRetryDelay
	}
	if params.Clock == nil {
		params.Clock = clock.WallClock
	}

	return &Migrator{
		source:     source,
		target:     target,
		store:      store,
		logger:     logger,
		pageSize:   params.PageSize,
		attempts:   params.Attempts,
		retryDelay: params.RetryDelay,
		clock:      params.Clock,
	}
}

// Run copies the migration's project from the source store into the target
// store, starting at the migration's cursor. It returns nil once every
// remaining page has been written; the caller decides the terminal state.
// The passed migration is updated in place as pages complete.
func (m *Migrator) Run(ctx context.Context, migration *model.IdentityMigration) error {
	logger := m.logger.WithField("project", migration.ProjectID)

	// Skips accrued by an earlier failed run stay in the counter for
	// reporting, but only skips from this run count against the threshold;
	// seen restarts at the cursor too, so mixing the two would wedge a
	// resumed migration in FAILED.
	priorSkips := migration.SkippedRecords
	seen := int64(0)
	cursor := migration.Cursor
	if cursor != "" {
		logger.WithField("cursor", cursor).Info("Resuming identity migration from stored cursor")
	}

	for {
		page, err := m.listPage(ctx, migration.ProjectID, cursor)
		if err != nil {
			return errors.Wrap(err, "failed to read identities from source store")
		}
		if len(page.Identities) == 0 && len(page.Malformed) == 0 && page.NextCursor == "" {
			return nil
		}

		seen += int64(len(page.Identities) + len(page.Malformed))

		for _, identifier := range page.Malformed {
			migration.SkippedRecords++
			logger.WithField("identifier", identifier).
				Warn("Skipping identity record the source store could not decode")
		}

		valid := make([]*model.Identity, 0, len(page.Identities))
		for _, identity := range page.Identities {
			if validateErr := identity.Validate(); validateErr != nil {
				migration.SkippedRecords++
				logger.WithError(validateErr).WithField("identifier", identity.Identifier).
					Warn("Skipping malformed identity record")
				continue
			}
			valid = append(valid, identity)
		}
		if err = m.checkSkippedThreshold(migration, priorSkips, seen); err != nil {
			return err
		}

		err = m.writePage(ctx, migration, logger, priorSkips, seen, valid)
		if err != nil {
			return err
		}

		migration.Cursor = page.NextCursor
		err = m.store.UpdateIdentityMigrationProgress(migration)
		if err != nil {
			return errors.Wrap(err, "failed to persist migration progress")
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

func (m *Migrator) listPage(ctx context.Context, projectID, cursor string) (*identitystore.Page, error) {
	var page *identitystore.Page

	err := m.withRetries(ctx, func() error {
		var err error
		page, err = m.source.List(ctx, projectID, cursor, m.pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// writePage writes the page to the target store. A record the target rejects
// as malformed is dropped from the batch and counted as skipped, then the
// rest of the batch is retried.
func (m *Migrator) writePage(ctx context.Context, migration *model.IdentityMigration, logger log.FieldLogger, priorSkips, seen int64, identities []*model.Identity) error {
	for len(identities) > 0 {
		err := m.withRetries(ctx, func() error {
			return m.target.WriteBatch(ctx, migration.ProjectID, identities)
		})
		if err == nil {
			return nil
		}

		var dataErr *identitystore.DataError
		if !errors.As(err, &dataErr) {
			return errors.Wrap(err, "failed to write identities to target store")
		}

		migration.SkippedRecords++
		logger.WithError(dataErr).WithField("identifier", dataErr.Identifier).
			Warn("Skipping identity record rejected by target store")
		if err = m.checkSkippedThreshold(migration, priorSkips, seen); err != nil {
			return err
		}
		identities = dropIdentity(identities, dataErr.Identifier)
	}

	return nil
}

func (m *Migrator) withRetries(ctx context.Context, f func() error) error {
	var lastErr error

	err := retry.Call(retry.CallArgs{
		Func: f,
		IsFatalError: func(err error) bool {
			return !identitystore.IsTransient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
			m.logger.WithError(err).Warnf("Retrying identity store operation (attempt %d of %d)", attempt, m.attempts)
		},
		Attempts:    m.attempts,
		Delay:       m.retryDelay,
		MaxDelay:    maxRetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       m.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		return errors.Wrapf(lastErr, "giving up after %d attempts", m.attempts)
	}
	if retry.IsRetryStopped(err) {
		return errors.Wrap(ctx.Err(), "migration stopped")
	}

	return err
}

// checkSkippedThreshold fails the run once the records skipped during this
// run outgrow the share of records this run has seen. Skips carried over
// from an earlier failed run are excluded; that run already paid for them.
func (m *Migrator) checkSkippedThreshold(migration *model.IdentityMigration, priorSkips, seen int64) error {
	skipped := migration.SkippedRecords - priorSkips

	allowed := seen * skippedRecordsPercent / 100
	if allowed < skippedRecordsFloor {
		allowed = skippedRecordsFloor
	}
	if skipped > allowed {
		return errors.Errorf("skipped %d of %d records, exceeding the threshold of %d", skipped, seen, allowed)
	}

	return nil
}

func dropIdentity(identities []*model.Identity, identifier string) []*model.Identity {
	kept := identities[:0]
	for _, identity := range identities {
		if identity.Identifier == identifier {
			continue
		}
		kept = append(kept, identity)
	}
	return kept
}
