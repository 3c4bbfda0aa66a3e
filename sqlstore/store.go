// Package sqlstore is a tripload.Store backed by database/sql. It supports
// the sqlite3 and duckdb drivers; the queries it runs are embedded from
// queries/*.sql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/bjaus/tripload"
	"github.com/bjaus/tripload/trip"
	"github.com/bjaus/tripload/zone"
)

// Supported driver names.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

const (
	// DefaultMaxParams is the most bound parameters put in one statement.
	// It is SQLite's historical SQLITE_MAX_VARIABLE_NUMBER.
	DefaultMaxParams = 999

	zoneParams = 4
	tripParams = 16
)

// Store writes zones, trips and load checkpoints through one *sql.DB.
type Store struct {
	db        *sql.DB
	driver    string
	logger    logrus.FieldLogger
	queries   map[string]string
	maxParams int
}

var (
	_ tripload.Store        = (*Store)(nil)
	_ tripload.Checkpointer = (*Store)(nil)
)

// Open connects to dsn with the named driver and checks the connection.
func Open(driver, dsn string, logger logrus.FieldLogger) (*Store, error) {
	if driver != DriverSQLite && driver != DriverDuckDB {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		// Single writer; also keeps ":memory:" on one connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := New(db, driver, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("database connection established")
	return s, nil
}

// New wraps an open database. driver is only recorded in log fields; both
// supported dialects run the same embedded queries.
func New(db *sql.DB, driver string, logger logrus.FieldLogger) (*Store, error) {
	queries, err := loadQueries()
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Store{
		db:        db,
		driver:    driver,
		logger:    logger.WithField("driver", driver),
		queries:   queries,
		maxParams: DefaultMaxParams,
	}, nil
}

// WithMaxParams overrides the bound-parameter limit per statement.
// Values smaller than one row's parameters are ignored.
func (s *Store) WithMaxParams(n int) *Store {
	if n >= tripParams {
		s.maxParams = n
	}
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) query(name string) string {
	q, ok := s.queries[name]
	if !ok {
		// Names are compile-time constants checked by tests.
		panic(fmt.Sprintf("sqlstore: query %q not found", name))
	}
	return q
}

// EnsureSchema creates the zones, trips and load_checkpoints tables if
// they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, name := range []string{qCreateZones, qCreateTrips, qCreateCheckpoints} {
		if _, err := s.exec(ctx, s.db, name, s.query(name)); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertZones writes zones in one transaction, replacing the attributes of
// zones that already exist. It returns the number of zones written.
func (s *Store) UpsertZones(ctx context.Context, zones []zone.Zone) (int64, error) {
	if len(zones) == 0 {
		return 0, nil
	}

	batches := tripload.SizeBatcher[zone.Zone](s.maxParams / zoneParams).Batch(zones)
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		for _, batch := range batches {
			stmt := s.query(qUpsertZones) + "\n" + placeholders(len(batch), zoneParams) + "\n" + s.query(qUpsertZonesConflict)
			args := make([]any, 0, len(batch)*zoneParams)
			for _, z := range batch {
				args = append(args, z.LocationID, z.Borough, z.Zone, z.ServiceZone)
			}
			if _, err := s.exec(ctx, tx, qUpsertZones, stmt, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert zones: %w", err)
	}
	return int64(len(zones)), nil
}

// ZoneIDs returns the committed LocationIDs in ascending order.
func (s *Store) ZoneIDs(ctx context.Context) ([]int64, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.query(qSelectZoneIDs))
	if err != nil {
		return nil, fmt.Errorf("select zone ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan zone id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select zone ids: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"query":    qSelectZoneIDs,
		"rows":     len(ids),
		"duration": time.Since(start),
	}).Debug("query executed")
	return ids, nil
}

// InsertTrips writes trips in one transaction, as many multi-row INSERT
// statements as the parameter limit requires. Nothing is written if any
// statement fails.
func (s *Store) InsertTrips(ctx context.Context, trips []trip.Derived) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}

	weigh := func(trip.Derived) int { return tripParams }
	batches := tripload.WeightedBatcher(weigh, s.maxParams).Batch(trips)

	var written int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		for _, batch := range batches {
			stmt := s.query(qInsertTrips) + "\n" + placeholders(len(batch), tripParams)
			args := make([]any, 0, len(batch)*tripParams)
			for _, t := range batch {
				args = append(args, tripArgs(t)...)
			}
			res, err := s.exec(ctx, tx, qInsertTrips, stmt, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			written += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert trips: %w", err)
	}
	return written, nil
}

// LoadCheckpoint returns the checkpoint saved for job, or nil.
func (s *Store) LoadCheckpoint(ctx context.Context, job string) (*tripload.Checkpoint, error) {
	var cursor int64
	var data string
	err := s.db.QueryRowContext(ctx, s.query(qSelectCheckpoint), job).Scan(&cursor, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	summary := &tripload.Summary{}
	if err := summary.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("decode checkpoint summary: %w", err)
	}
	return &tripload.Checkpoint{Cursor: cursor, Summary: summary}, nil
}

// SaveCheckpoint replaces the checkpoint for job.
func (s *Store) SaveCheckpoint(ctx context.Context, job string, cp tripload.Checkpoint) error {
	data := []byte("{}")
	if cp.Summary != nil {
		var err error
		if data, err = cp.Summary.MarshalJSON(); err != nil {
			return fmt.Errorf("encode checkpoint summary: %w", err)
		}
	}
	if _, err := s.exec(ctx, s.db, qSaveCheckpoint, s.query(qSaveCheckpoint), job, cp.Cursor, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint deletes the checkpoint for job.
func (s *Store) ClearCheckpoint(ctx context.Context, job string) error {
	if _, err := s.exec(ctx, s.db, qDeleteCheckpoint, s.query(qDeleteCheckpoint), job); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// exec runs stmt and logs its timing under name.
func (s *Store) exec(ctx context.Context, db execer, name, stmt string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.ExecContext(ctx, stmt, args...)
	fields := logrus.Fields{
		"query":    name,
		"params":   len(args),
		"duration": time.Since(start),
	}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("query execution failed")
		return nil, err
	}
	s.logger.WithFields(fields).Debug("query executed")
	return res, nil
}

// transaction runs fn in a transaction, committing if it returns nil and
// rolling back otherwise.
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// placeholders returns rows parenthesised groups of n "?" markers.
func placeholders(rows, n int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
	var b strings.Builder
	for i := range rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(group)
	}
	return b.String()
}

// tripArgs returns the insert parameters of t in trips column order.
func tripArgs(t trip.Derived) []any {
	return []any{
		nullID(t.VendorID),
		t.Pickup,
		t.Dropoff,
		t.PassengerCount,
		t.TripDistance,
		t.TripDuration,
		t.TripSpeed,
		t.FarePerMile,
		t.FareAmount,
		t.Extra,
		t.MTATax,
		t.TipAmount,
		t.TollsAmount,
		t.TotalAmount,
		nullID(t.PULocationID),
		nullID(t.DOLocationID),
	}
}

func nullID(n sql.NullFloat64) sql.NullInt64 {
	id, ok := trip.ID(n)
	return sql.NullInt64{Int64: id, Valid: ok}
}
