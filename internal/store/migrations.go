package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/blang/semver"
	"github.com/pkg/errors"
)

type migration struct {
	fromVersion semver.Version
	toVersion   semver.Version
	apply       func(e execer) error
}

// migrations defines the set of schema migrations necessary to advance the
// database from one version to the next.
var migrations = []migration{
	{semver.MustParse("0.0.0"), semver.MustParse("0.1.0"), func(e execer) error {
		_, err := e.Exec(`
			CREATE TABLE System (
				SKey VARCHAR(64) PRIMARY KEY,
				SValue VARCHAR(1024) NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE Project (
				ID TEXT PRIMARY KEY,
				Name TEXT NOT NULL,
				EnableDynamoDB BOOLEAN NOT NULL,
				CreateAt BIGINT NOT NULL,
				DeleteAt BIGINT NOT NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE Identity (
				ID TEXT PRIMARY KEY,
				ProjectID TEXT NOT NULL,
				Identifier TEXT NOT NULL,
				TraitsRaw BYTEA NULL,
				FlagOverridesRaw BYTEA NULL,
				CreateAt BIGINT NOT NULL,
				CONSTRAINT Identity_ProjectIdentifier UNIQUE (ProjectID, Identifier)
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE INDEX Identity_ProjectID ON Identity (ProjectID);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE IdentityMigration (
				ProjectID TEXT PRIMARY KEY,
				State TEXT NOT NULL,
				ResumeCursor TEXT NOT NULL,
				SkippedRecords BIGINT NOT NULL,
				RequestAt BIGINT NOT NULL,
				StartAt BIGINT NOT NULL,
				CompleteAt BIGINT NOT NULL,
				LockAcquiredBy TEXT NULL,
				LockAcquiredAt BIGINT NOT NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE Webhook (
				ID TEXT PRIMARY KEY,
				OwnerID TEXT NOT NULL,
				URL TEXT NOT NULL,
				CreateAt BIGINT NOT NULL,
				DeleteAt BIGINT NOT NULL
			);
		`)
		if err != nil {
			return err
		}

		return nil
	}},
}

// Migrate advances the schema of the database to the latest version.
func (sqlStore *SQLStore) Migrate() error {
	currentVersion, err := sqlStore.getCurrentVersion()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if !currentVersion.EQ(migration.fromVersion) {
			continue
		}

		sqlStore.logger.Infof("Migrating schema from %s to %s", migration.fromVersion, migration.toVersion)
		err := migration.apply(sqlStore.db)
		if err != nil {
			return errors.Wrapf(err, "failed to migrate schema from %s to %s", migration.fromVersion, migration.toVersion)
		}

		err = sqlStore.setCurrentVersion(migration.toVersion.String())
		if err != nil {
			return err
		}

		currentVersion = migration.toVersion
	}

	return nil
}

// GetCurrentVersion returns the schema version of the database.
func (sqlStore *SQLStore) GetCurrentVersion() (semver.Version, error) {
	return sqlStore.getCurrentVersion()
}

func (sqlStore *SQLStore) getCurrentVersion() (semver.Version, error) {
	var rawVersion string
	err := sqlStore.getBuilder(sqlStore.db, &rawVersion,
		sq.Select("SValue").From("System").Where("SKey = ?", "DatabaseVersion"),
	)
	if err != nil {
		// The System table does not exist before the first migration runs.
		return semver.MustParse("0.0.0"), nil
	}

	version, err := semver.Parse(rawVersion)
	if err != nil {
		return semver.Version{}, errors.Wrapf(err, "failed to parse database version %s", rawVersion)
	}

	return version, nil
}

func (sqlStore *SQLStore) setCurrentVersion(version string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Delete("System").
		Where("SKey = ?", "DatabaseVersion"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to clear database version")
	}

	_, err = sqlStore.execBuilder(sqlStore.db, sq.
		Insert("System").
		Columns("SKey", "SValue").
		Values("DatabaseVersion", version),
	)
	if err != nil {
		return errors.Wrap(err, "failed to record database version")
	}

	return nil
}
