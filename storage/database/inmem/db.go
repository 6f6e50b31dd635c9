package inmemdb

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/tech"
	"github.com/trezcool/odin/core/voc"
)

type (
	DB struct {
		stubExecutor

		roster *rosterTables
		tech   *techTables
		voc    *vocTable
	}

	rosterTables struct {
		sync.RWMutex
		users    map[string]*roster.User
		sections map[string]*roster.Section
		units    map[string]*roster.CurricularUnit
	}

	techTables struct {
		sync.RWMutex
		techs      map[string]*tech.Tech
		attendance map[string]*tech.ClassAttendance
	}

	vocTable struct {
		sync.RWMutex
		table map[string]*voc.Voc
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		roster: &rosterTables{
			users:    make(map[string]*roster.User),
			sections: make(map[string]*roster.Section),
			units:    make(map[string]*roster.CurricularUnit),
		},
		tech: &techTables{
			techs:      make(map[string]*tech.Tech),
			attendance: make(map[string]*tech.ClassAttendance),
		},
		voc: &vocTable{table: make(map[string]*voc.Voc)},
	}
	return db, nil
}

// BeginTxx hands out a no-op transactor; repositories here guard their own
// tables and every write is applied immediately.
func (db *DB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{}, nil
}

type noopTx struct{ stubExecutor }

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

// stubExecutor satisfies core.DBExecutor; raw SQL is never issued against the
// in-memory store.
type stubExecutor struct{}

var errNoSQL = errors.New("inmemdb: raw SQL not supported")

func (stubExecutor) DriverName() string     { return "inmem" }
func (stubExecutor) Rebind(q string) string { return q }
func (stubExecutor) BindNamed(q string, arg interface{}) (string, []interface{}, error) {
	return q, nil, errNoSQL
}
func (stubExecutor) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}
func (stubExecutor) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return nil, errNoSQL
}
func (stubExecutor) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return nil
}
func (stubExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (stubExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errNoSQL
}
func (stubExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errNoSQL
}
