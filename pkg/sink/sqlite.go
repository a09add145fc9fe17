package sink

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fractaldim/pkg/boxcount"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id            TEXT PRIMARY KEY,
		input_path        TEXT,
		strategy          TEXT,
		started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS frames (
		run_id            TEXT,
		frame             BIGINT,
		dimension         DOUBLE,
		r_squared         DOUBLE,
		empty             BOOLEAN,
		mean_lacunarity   DOUBLE,
		PRIMARY KEY(run_id, frame),
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS scale_levels (
		run_id            TEXT,
		frame             BIGINT,
		level             INTEGER,
		boxes             BIGINT,
		occupied_boxes    BIGINT,
		mass_sum          BIGINT,
		mass_sum_sq       BIGINT,
		lacunarity        DOUBLE,
		PRIMARY KEY(run_id, frame, level),
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
`

// SQLiteSink records every frame and its scale buckets in a SQLite database.
// Rows are written inside a transaction that is committed on each Flush.
type SQLiteSink struct {
	db    *sql.DB
	tx    *sql.Tx
	runID string
}

// OpenSQLite opens (or creates) the database at path and registers a new run
func OpenSQLite(path, inputPath, strategy string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrIO, path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %w", ErrIO, err)
	}

	s := &SQLiteSink{db: db, runID: uuid.NewString()}
	if _, err := db.Exec(`INSERT INTO runs (run_id, input_path, strategy) VALUES (?, ?, ?)`,
		s.runID, inputPath, strategy); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to register run: %w", ErrIO, err)
	}

	if err := s.begin(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RunID returns the identifier of the run recorded by this sink
func (s *SQLiteSink) RunID() string {
	return s.runID
}

func (s *SQLiteSink) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrIO, err)
	}
	s.tx = tx
	return nil
}

// Write implements Sink
func (s *SQLiteSink) Write(res boxcount.FrameResult) error {
	_, err := s.tx.Exec(`
		INSERT INTO frames (run_id, frame, dimension, r_squared, empty, mean_lacunarity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.runID, res.Frame, res.Dimension, res.RSquared, res.Empty, res.MeanLacunarity())
	if err != nil {
		return fmt.Errorf("%w: failed to insert frame %d: %w", ErrIO, res.Frame, err)
	}

	for _, b := range res.Buckets {
		_, err := s.tx.Exec(`
			INSERT INTO scale_levels (run_id, frame, level, boxes, occupied_boxes, mass_sum, mass_sum_sq, lacunarity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, res.Frame, b.Level, b.Boxes, b.OccupiedBoxes, b.MassSum, b.MassSumSq, b.Lacunarity())
		if err != nil {
			return fmt.Errorf("%w: failed to insert level %d of frame %d: %w", ErrIO, b.Level, res.Frame, err)
		}
	}
	return nil
}

// Flush commits the pending rows and opens a new transaction
func (s *SQLiteSink) Flush() error {
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		s.tx = nil
		return fmt.Errorf("%w: commit failed: %w", ErrIO, err)
	}
	return s.begin()
}

// Close commits the pending rows and closes the database
func (s *SQLiteSink) Close() error {
	var err error
	if s.tx != nil {
		if cerr := s.tx.Commit(); cerr != nil {
			err = fmt.Errorf("%w: commit failed: %w", ErrIO, cerr)
		}
		s.tx = nil
	}
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: close failed: %w", ErrIO, cerr)
	}
	return err
}
