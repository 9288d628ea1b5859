package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
	_ "modernc.org/sqlite"
)

// DailyDBPath returns the database file path for one UTC day
func DailyDBPath(dir string, day time.Time) string {
	return filepath.Join(dir, "flighttrack-"+day.UTC().Format("2006-01-02")+".db")
}

// FlightStorage is a SQLite-based query store for flights and squawk
// transitions. Rollup JSON artifacts stay canonical; this exists so the
// dashboard endpoints query indexed tables instead of rescanning JSON.
type FlightStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewFlightStorage opens (or creates) a flight database
func NewFlightStorage(dbPath string, log *logger.Logger) (*FlightStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size=10000"); err != nil {
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}

	if err := initSchema(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &FlightStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *FlightStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initSchema(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hex TEXT NOT NULL,
			callsign TEXT,
			registration TEXT,
			aircraft_type TEXT,
			start_time_ms INTEGER NOT NULL,
			end_time_ms INTEGER NOT NULL,
			start_lat REAL,
			start_lon REAL,
			end_lat REAL,
			end_lon REAL,
			max_alt_ft REAL,
			max_speed_kt REAL,
			reports INTEGER,
			airline_code TEXT,
			airline_name TEXT,
			UNIQUE(hex, start_time_ms)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flights table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS squawk_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hex TEXT NOT NULL,
			callsign TEXT,
			registration TEXT,
			from_code TEXT NOT NULL,
			to_code TEXT NOT NULL,
			category TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			minutes_since_last REAL,
			altitude_ft REAL,
			UNIQUE(hex, timestamp_ms, to_code)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create squawk_transitions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_flights_start_time ON flights(start_time_ms)`)
	if err != nil {
		return fmt.Errorf("failed to create index on flights.start_time_ms: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_flights_hex_start ON flights(hex, start_time_ms)`)
	if err != nil {
		return fmt.Errorf("failed to create index on flights.hex_start: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON squawk_transitions(timestamp_ms)`)
	if err != nil {
		return fmt.Errorf("failed to create index on squawk_transitions.timestamp_ms: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}

// UpsertFlights inserts flights, replacing earlier rows for the same
// (hex, start time). Safe to call repeatedly with overlapping batches.
func (s *FlightStorage) UpsertFlights(flights []tracker.Flight) error {
	if len(flights) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO flights
		(hex, callsign, registration, aircraft_type, start_time_ms, end_time_ms,
		 start_lat, start_lon, end_lat, end_lon, max_alt_ft, max_speed_kt,
		 reports, airline_code, airline_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare flight insert: %w", err)
	}
	defer stmt.Close()

	for i := range flights {
		f := &flights[i]
		_, err := stmt.Exec(
			f.IcaoHex, f.Callsign, f.Registration, f.AircraftType,
			f.StartTime.UnixMilli(), f.EndTime.UnixMilli(),
			f.StartLat, f.StartLon, f.EndLat, f.EndLon,
			nullableFloat(f.MaxAltitudeFt), nullableFloat(f.MaxSpeedKt),
			f.ReportCount, f.AirlineCode, f.AirlineName,
		)
		if err != nil {
			return fmt.Errorf("failed to insert flight %s: %w", f.IcaoHex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flights: %w", err)
	}

	s.logger.Debug("Stored flights", logger.Int("count", len(flights)))
	return nil
}

// InsertTransitions inserts squawk transitions, ignoring exact duplicates
func (s *FlightStorage) InsertTransitions(transitions []tracker.SquawkTransition) error {
	if len(transitions) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO squawk_transitions
		(hex, callsign, registration, from_code, to_code, category,
		 timestamp_ms, minutes_since_last, altitude_ft)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition insert: %w", err)
	}
	defer stmt.Close()

	for i := range transitions {
		t := &transitions[i]
		_, err := stmt.Exec(
			t.IcaoHex, t.Callsign, t.Registration,
			t.FromCode, t.ToCode, string(tracker.Categorize(t.FromCode, t.ToCode)),
			t.TimestampMs, nullableFloat(t.MinutesSinceLast), nullableFloat(t.AltitudeFt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transition %s: %w", t.IcaoHex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transitions: %w", err)
	}

	s.logger.Debug("Stored squawk transitions", logger.Int("count", len(transitions)))
	return nil
}

// GetFlights returns flights starting inside [start, end), newest first
func (s *FlightStorage) GetFlights(start, end time.Time) ([]tracker.Flight, error) {
	rows, err := s.db.Query(`
		SELECT hex, callsign, registration, aircraft_type, start_time_ms,
		       end_time_ms, start_lat, start_lon, end_lat, end_lon,
		       max_alt_ft, max_speed_kt, reports, airline_code, airline_name
		FROM flights
		WHERE start_time_ms >= ? AND start_time_ms < ?
		ORDER BY start_time_ms DESC
	`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var flights []tracker.Flight
	for rows.Next() {
		var f tracker.Flight
		var startMs, endMs int64
		var maxAlt, maxSpeed sql.NullFloat64
		err := rows.Scan(
			&f.IcaoHex, &f.Callsign, &f.Registration, &f.AircraftType,
			&startMs, &endMs, &f.StartLat, &f.StartLon, &f.EndLat, &f.EndLon,
			&maxAlt, &maxSpeed, &f.ReportCount, &f.AirlineCode, &f.AirlineName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		f.StartTime = time.UnixMilli(startMs).UTC()
		f.EndTime = time.UnixMilli(endMs).UTC()
		if maxAlt.Valid {
			v := maxAlt.Float64
			f.MaxAltitudeFt = &v
		}
		if maxSpeed.Valid {
			v := maxSpeed.Float64
			f.MaxSpeedKt = &v
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// GetTransitions returns squawk transitions inside [start, end) in time order
func (s *FlightStorage) GetTransitions(start, end time.Time) ([]tracker.SquawkTransition, error) {
	rows, err := s.db.Query(`
		SELECT hex, callsign, registration, from_code, to_code,
		       timestamp_ms, minutes_since_last, altitude_ft
		FROM squawk_transitions
		WHERE timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []tracker.SquawkTransition
	for rows.Next() {
		var t tracker.SquawkTransition
		var minutes, altitude sql.NullFloat64
		err := rows.Scan(
			&t.IcaoHex, &t.Callsign, &t.Registration, &t.FromCode, &t.ToCode,
			&t.TimestampMs, &minutes, &altitude,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		if minutes.Valid {
			v := minutes.Float64
			t.MinutesSinceLast = &v
		}
		if altitude.Valid {
			v := altitude.Float64
			t.AltitudeFt = &v
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// Counts returns the stored flight and transition row counts
func (s *FlightStorage) Counts() (flights int, transitions int, err error) {
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM flights`).Scan(&flights); err != nil {
		return 0, 0, fmt.Errorf("failed to count flights: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM squawk_transitions`).Scan(&transitions); err != nil {
		return 0, 0, fmt.Errorf("failed to count transitions: %w", err)
	}
	return flights, transitions, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
