package supervisor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/AceFire6/flagsmith/internal/webhook"
	"github.com/AceFire6/flagsmith/model"
)

// identityMigrationStore abstracts the database operations required to run
// identity migrations.
type identityMigrationStore interface {
	GetUnlockedIdentityMigrationsPendingWork() ([]*model.IdentityMigration, error)
	GetIdentityMigration(projectID string) (*model.IdentityMigration, error)
	TryTransitionIdentityMigration(projectID string, from []model.IdentityMigrationState, to model.IdentityMigrationState) (bool, error)
	UpdateIdentityMigrationProgress(migration *model.IdentityMigration) error
	PurgeExpiredIdentityMigrationLocks(ttlMillis int64) (int64, error)

	GetWebhooks(filter *model.WebhookFilter) ([]*model.Webhook, error)

	identityMigrationLockStore
}

// migrationRunner copies a project's identities between stores.
type migrationRunner interface {
	Run(ctx context.Context, migration *model.IdentityMigration) error
}

// IdentityMigrationSupervisor finds identity migrations pending work and
// runs them. Multiple servers may supervise the same database; the row lock
// ensures each migration is worked on by one server at a time.
type IdentityMigrationSupervisor struct {
	store         identityMigrationStore
	runner        migrationRunner
	instanceID    string
	lockTTL       time.Duration
	logger        log.FieldLogger
	webhookSender *webhook.Sender
}

// NewIdentityMigrationSupervisor creates a new IdentityMigrationSupervisor.
func NewIdentityMigrationSupervisor(
	store identityMigrationStore,
	runner migrationRunner,
	instanceID string,
	lockTTL time.Duration,
	environment string,
	logger log.FieldLogger) *IdentityMigrationSupervisor {
	return &IdentityMigrationSupervisor{
		store:         store,
		runner:        runner,
		instanceID:    instanceID,
		lockTTL:       lockTTL,
		logger:        logger,
		webhookSender: webhook.NewSender(store, environment),
	}
}

// Shutdown performs graceful shutdown tasks for the identity migration
// supervisor.
func (s *IdentityMigrationSupervisor) Shutdown() {
	s.logger.Debug("Shutting down identity migration supervisor")
}

// Do looks for identity migrations pending work and attempts to run them.
func (s *IdentityMigrationSupervisor) Do() error {
	if s.lockTTL > 0 {
		purged, err := s.store.PurgeExpiredIdentityMigrationLocks(s.lockTTL.Milliseconds())
		if err != nil {
			s.logger.WithError(err).Warn("Failed to purge expired identity migration locks")
		} else if purged > 0 {
			s.logger.Warnf("Purged %d expired identity migration lock(s)", purged)
		}
	}

	migrations, err := s.store.GetUnlockedIdentityMigrationsPendingWork()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to query for identity migrations pending work")
		return nil
	}

	for _, migration := range migrations {
		s.Supervise(migration)
	}

	return nil
}

// Supervise runs the given identity migration to a terminal state.
func (s *IdentityMigrationSupervisor) Supervise(migration *model.IdentityMigration) {
	logger := s.logger.WithFields(log.Fields{
		"project": migration.ProjectID,
	})

	lock := newIdentityMigrationLock(migration.ProjectID, s.instanceID, s.store, logger)
	if !lock.TryLock() {
		return
	}
	defer lock.Unlock()

	// Before working on the migration, it is crucial that we ensure that it
	// was not updated to a new state by another server.
	originalState := migration.State
	migration, err := s.store.GetIdentityMigration(migration.ProjectID)
	if err != nil {
		logger.WithError(err).Error("Failed to get refreshed identity migration")
		return
	}
	if migration.State != originalState {
		logger.WithField("oldMigrationState", originalState).
			WithField("newMigrationState", migration.State).
			Warn("Another server has worked on this identity migration; skipping...")
		return
	}
	if migration.State != model.IdentityMigrationStateInProgress {
		logger.Warnf("Found identity migration pending work in unexpected state %s", migration.State)
		return
	}

	logger.Debugf("Supervising identity migration in state %s", migration.State)

	if migration.StartAt == 0 {
		migration.StartAt = model.GetMillis()
		err = s.store.UpdateIdentityMigrationProgress(migration)
		if err != nil {
			logger.WithError(err).Error("Failed to record identity migration start time")
			return
		}
	}

	newState := s.runMigration(migration, logger)

	transitioned, err := s.store.TryTransitionIdentityMigration(migration.ProjectID, []model.IdentityMigrationState{model.IdentityMigrationStateInProgress}, newState)
	if err != nil {
		logger.WithError(err).Errorf("Failed to set identity migration state to %s", newState)
		return
	}
	if !transitioned {
		logger.Warnf("Identity migration was no longer in progress; not setting state to %s", newState)
		return
	}

	oldState := migration.State
	migration.State = newState

	s.webhookSender.SendIdentityMigrationWebhook(migration, string(oldState), logger)

	logger.Debugf("Transitioned identity migration from %s to %s", oldState, newState)
}

// runMigration copies the project's identities and reports the terminal
// state the migration should move to. Progress written while copying is kept
// on failure so a re-trigger resumes from the last completed page.
func (s *IdentityMigrationSupervisor) runMigration(migration *model.IdentityMigration, logger log.FieldLogger) model.IdentityMigrationState {
	err := s.runner.Run(context.Background(), migration)
	if err != nil {
		logger.WithError(err).Error("Identity migration failed")

		progressErr := s.store.UpdateIdentityMigrationProgress(migration)
		if progressErr != nil {
			logger.WithError(progressErr).Error("Failed to persist identity migration progress after failure")
		}

		return model.IdentityMigrationStateFailed
	}

	return model.IdentityMigrationStateComplete
}
