package supervisor

import (
	log "github.com/sirupsen/logrus"
)

type identityMigrationLockStore interface {
	LockIdentityMigration(projectID, lockerID string) (bool, error)
	UnlockIdentityMigration(projectID, lockerID string, force bool) (bool, error)
}

type identityMigrationLock struct {
	projectID string
	lockerID  string
	store     identityMigrationLockStore
	logger    log.FieldLogger
}

func newIdentityMigrationLock(projectID, lockerID string, store identityMigrationLockStore, logger log.FieldLogger) *identityMigrationLock {
	return &identityMigrationLock{
		projectID: projectID,
		lockerID:  lockerID,
		store:     store,
		logger:    logger,
	}
}

func (l *identityMigrationLock) TryLock() bool {
	locked, err := l.store.LockIdentityMigration(l.projectID, l.lockerID)
	if err != nil {
		l.logger.WithError(err).Error("failed to lock identity migration")
		return false
	}

	return locked
}

func (l *identityMigrationLock) Unlock() {
	unlocked, err := l.store.UnlockIdentityMigration(l.projectID, l.lockerID, false)
	if err != nil {
		l.logger.WithError(err).Error("failed to unlock identity migration")
	} else if unlocked != true {
		l.logger.Error("failed to release lock for identity migration")
	}
}
