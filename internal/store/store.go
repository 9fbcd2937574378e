package store

import (
	"database/sql"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AceFire6/flagsmith/model"

	// Enable the postgres and sqlite3 drivers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore abstracts access to the relational database backing the ops
// server: projects, identities and migration state.
type SQLStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	logger  log.FieldLogger
}

// New constructs a new instance of SQLStore.
func New(dsn string, logger log.FieldLogger) (*SQLStore, error) {
	var db *sqlx.DB
	builder := sq.StatementBuilder

	switch {
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "sqlite3://"):
		source := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite3://"), "sqlite://")

		var err error
		db, err = sqlx.Connect("sqlite3", source)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to connect to sqlite database %s", source)
		}

		// Serialize all access to the sqlite database.
		db.SetMaxOpenConns(1)

		// Override the default mapper with one that leaves struct field
		// names untouched, since sqlite preserves the case of the column
		// names used at creation.
		db.MapperFunc(func(s string) string { return s })

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		databaseURL, err := url.Parse(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "unable to parse dsn as an url")
		}
		databaseURL.Scheme = "postgres"

		db, err = sqlx.Connect("postgres", databaseURL.String())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to connect to postgres database %s", databaseURL.Host)
		}

	default:
		return nil, errors.Errorf("unsupported dsn %s", dsn)
	}

	return &SQLStore{
		db:      db,
		builder: builder,
		logger:  logger,
	}, nil
}

// queryer is an interface describing a resource that can query.
type queryer interface {
	Get(dest interface{}, query string, args ...interface{}) error
}

// execer is an interface describing a resource that can execute write queries.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	DriverName() string
}

type dbInterface interface {
	queryer
	execer
	Select(dest interface{}, query string, args ...interface{}) error
}

// builder is an interface describing a resource that can construct SQL and arguments.
//
// It exists to allow consuming any squirrel.*Builder type.
type builder interface {
	ToSql() (string, []interface{}, error)
}

// get queries for a single row, building the sql, and writing the result into dest.
//
// Use this to simplify querying for a single row or column. Dest may be a map[string]interface,
// a struct, or a scannable value. Returns sql.ErrNoRows if no rows are found.
func (sqlStore *SQLStore) getBuilder(q queryer, dest interface{}, b builder) error {
	sqlString, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build sql")
	}

	sqlString = sqlStore.db.Rebind(sqlString)

	err = q.Get(dest, sqlString, args...)
	if err != nil {
		return err
	}

	return nil
}

// selectBuilder queries for one or more rows, building the sql, and writing the result into dest.
//
// Use this to simplify querying for multiple rows (and possibly columns). Dest may be a slice of
// a map[string]interface, a struct, or a scannable value.
func (sqlStore *SQLStore) selectBuilder(db dbInterface, dest interface{}, b builder) error {
	sqlString, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build sql")
	}

	sqlString = sqlStore.db.Rebind(sqlString)

	err = db.Select(dest, sqlString, args...)
	if err != nil {
		return err
	}

	return nil
}

// execBuilder builds and executes the given query, returning the result.
func (sqlStore *SQLStore) execBuilder(e execer, b builder) (sql.Result, error) {
	sqlString, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build sql")
	}

	sqlString = sqlStore.db.Rebind(sqlString)

	return e.Exec(sqlString, args...)
}

// Close closes the underlying database connection.
func (sqlStore *SQLStore) Close() error {
	return sqlStore.db.Close()
}

// GetMillis is a convenience method to get milliseconds since epoch.
func GetMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

type countResult []struct {
	Count int64
}

func (r countResult) value() (int64, error) {
	if len(r) != 1 {
		return 0, errors.Errorf("expected 1 count result, got %d", len(r))
	}
	return r[0].Count, nil
}

// applyPagingFilter applies a paging filter to the given builder. The deleted
// column is assumed to be named DeleteAt.
func applyPagingFilter(builder sq.SelectBuilder, paging model.Paging) sq.SelectBuilder {
	if paging.PerPage != model.AllPerPage {
		builder = builder.
			Limit(uint64(paging.PerPage)).
			Offset(uint64(paging.Page * paging.PerPage))
	}

	if !paging.IncludeDeleted {
		builder = builder.Where("DeleteAt = 0")
	}

	return builder
}
